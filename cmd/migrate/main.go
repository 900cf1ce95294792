// Command migrate manages the social schema: embedded SQL migrations,
// GORM AutoMigrate, status and single-version rollback.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"socialhub/internal/config"
	"socialhub/internal/database"

	"gorm.io/gorm"
)

const usage = "usage: migrate <up|auto|status|down <version>>"

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	if err := run(context.Background(), cfg, db, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string) error {
	runner := database.NewRunner(db)
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		n, err := runner.Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations failed after %d applied: %w", n, err)
		}
		fmt.Printf("%d migration(s) applied\n", n)
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		fmt.Println("automigrate complete")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		fmt.Printf("mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
			status.Mode, status.Environment, status.RunSQL, status.RunAuto, len(status.Applied), len(status.Pending))
		for _, l := range status.Applied {
			fmt.Printf("applied: %06d_%s at %s\n", l.Version, l.Name, l.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		for _, m := range status.Pending {
			fmt.Printf("pending: %s\n", m.String())
		}
		if len(status.MissingTables) > 0 {
			fmt.Printf("missing tables: %s\n", strings.Join(status.MissingTables, ", "))
		}
	case "down":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate down <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := runner.Down(ctx, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Printf("rolled back migration %06d\n", version)
	default:
		return fmt.Errorf("unknown command %q; %s", args[0], usage)
	}
	return nil
}
