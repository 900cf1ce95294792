package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"socialhub/internal/cache"
	"socialhub/internal/models"
	"socialhub/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetProfile(ctx context.Context, id uint) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetAdmin(ctx context.Context, id uint, admin bool) error
	ListAdmins(ctx context.Context) ([]models.User, error)

	RecordFailedLogin(ctx context.Context, id uint, threshold int) (models.LockoutState, error)
	RecordSuccessfulLogin(ctx context.Context, id uint) error
	Unlock(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// withFollowCounts selects the user columns plus both follow counts.
func withFollowCounts(db *gorm.DB) *gorm.DB {
	return db.Select(`users.*,
		(SELECT COUNT(*) FROM follows WHERE follows.followee_id = users.id) AS followers_count,
		(SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id) AS following_count`)
}

// GetByID reads from the primary so lockout state and counts are current.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	defer observability.TrackQuery("get_by_id", "users")()

	var user models.User
	if err := r.db.WithContext(ctx).Scopes(withFollowCounts).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetProfile(ctx context.Context, id uint) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := cache.Aside(ctx, cache.UserProfileKey(id), &profile, cache.UserProfileTTL, func() error {
		var user models.User
		if err := readDB(r.db).WithContext(ctx).Scopes(withFollowCounts).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		profile = user.Profile()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

// findOne returns (nil, nil) when no row matches.
func (r *userRepository) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Scopes(withFollowCounts).Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			switch {
			case strings.Contains(constraint, "email"):
				return models.NewConflictError("Email is already in use")
			case strings.Contains(constraint, "username"):
				return models.NewConflictError("Username is already taken")
			default:
				return models.NewConflictError("User already exists")
			}
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).
		Select("bio", "profile_picture", "email", "updated_at").
		Updates(user).Error
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return models.NewConflictError("Email is already in use")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUsers(ctx, user.ID)
	return nil
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, admin bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_admin", admin)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) ListAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Where("is_admin = ?", true).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// RecordFailedLogin increments the failure counter under a row lock and locks
// the account once the counter reaches threshold. Concurrent failures are
// serialized, so no increment is lost.
func (r *userRepository) RecordFailedLogin(ctx context.Context, id uint, threshold int) (models.LockoutState, error) {
	defer observability.TrackQuery("record_failed_login", "users")()

	if threshold <= 0 {
		threshold = models.DefaultLockoutThreshold
	}

	var state models.LockoutState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "failed_login_attempts", "locked", "locked_at").
			First(&user, id).Error; err != nil {
			return err
		}

		state.FailedLoginAttempts = user.FailedLoginAttempts + 1
		state.Locked = user.Locked || state.FailedLoginAttempts >= threshold

		updates := map[string]any{
			"failed_login_attempts": state.FailedLoginAttempts,
			"locked":                state.Locked,
		}
		if state.Locked && !user.Locked {
			updates["locked_at"] = time.Now().UTC()
		}
		return tx.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return state, models.NewNotFoundError("User", id)
		}
		return state, models.NewInternalError(err)
	}
	return state, nil
}

// RecordSuccessfulLogin clears the failure counter. Rows already clean are
// not written.
func (r *userRepository) RecordSuccessfulLogin(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (failed_login_attempts > 0 OR locked = ?)", id, true).
		Updates(map[string]any{"failed_login_attempts": 0, "locked": false, "locked_at": nil}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Unlock is the administrative reset of a locked account.
func (r *userRepository) Unlock(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]any{"failed_login_attempts": 0, "locked": false, "locked_at": nil})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}
