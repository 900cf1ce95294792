package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"socialhub/internal/middleware"

	"gorm.io/gorm"
)

// MigrationLog is one row of migration_logs.
type MigrationLog struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (MigrationLog) TableName() string {
	return "migration_logs"
}

const ensureMigrationLogsSQL = `CREATE TABLE IF NOT EXISTS migration_logs (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// Runner applies and rolls back a fixed, version-ordered set of migrations
// against one database.
type Runner struct {
	db         *gorm.DB
	migrations []Migration
}

// NewRunner returns a runner over the embedded migrations.
func NewRunner(db *gorm.DB) *Runner {
	return NewRunnerFor(db, GetMigrations())
}

func NewRunnerFor(db *gorm.DB, set []Migration) *Runner {
	return &Runner{db: db, migrations: set}
}

// Applied lists recorded migrations in version order. A database that has
// never been migrated reports none.
func (r *Runner) Applied(ctx context.Context) ([]MigrationLog, error) {
	var logs []MigrationLog
	err := r.db.WithContext(ctx).Order("version ASC").Find(&logs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration_logs: %w", err)
	}
	return logs, nil
}

// Pending returns migrations not yet recorded. It refuses to answer when the
// log holds versions this build does not know about.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	logs, err := r.Applied(ctx)
	if err != nil {
		return nil, err
	}
	applied := versionsOf(logs)
	if err := validateAppliedVersions(applied, r.migrations); err != nil {
		return nil, err
	}
	return pendingFrom(r.migrations, applied), nil
}

// Up applies every pending migration, each in its own transaction together
// with its log row. It returns how many were applied.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.db.WithContext(ctx).Exec(ensureMigrationLogsSQL).Error; err != nil {
		return 0, fmt.Errorf("ensure migration_logs: %w", err)
	}
	pending, err := r.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, m := range pending {
		middleware.Logger.Info("Applying migration", slog.Int("version", m.Version), slog.String("name", m.Name))
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.UpScript).Error; err != nil {
				return fmt.Errorf("apply migration %s: %w", m.String(), err)
			}
			return tx.Create(&MigrationLog{Version: m.Version, Name: m.Name}).Error
		})
		if err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Down runs the down script of an applied migration and forgets it.
func (r *Runner) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(r.migrations, func(m Migration) bool { return m.Version == version })
	if idx < 0 {
		return fmt.Errorf("migration version %d not found", version)
	}
	m := r.migrations[idx]

	logs, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(versionsOf(logs), version) {
		return fmt.Errorf("migration %d has not been applied", version)
	}

	middleware.Logger.Info("Rolling back migration", slog.Int("version", version), slog.String("name", m.Name))
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.DownScript).Error; err != nil {
			return fmt.Errorf("roll back migration %s: %w", m.String(), err)
		}
		return tx.Where("version = ?", version).Delete(&MigrationLog{}).Error
	})
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	n, err := NewRunner(db).Up(ctx)
	if n > 0 {
		middleware.Logger.Info("Migrations applied", slog.Int("count", n))
	}
	return err
}

// RollbackMigration reverts one embedded migration by version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewRunner(db).Down(ctx, version)
}

func versionsOf(logs []MigrationLog) []int {
	out := make([]int, len(logs))
	for i, l := range logs {
		out[i] = l.Version
	}
	return out
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, v := range applied {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == v }) {
			unknown = append(unknown, fmt.Sprintf("%06d", v))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("migration_logs has versions this build does not know: %s", strings.Join(unknown, ", "))
}
