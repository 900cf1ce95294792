package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/observability"
	"socialhub/internal/repository"
	"socialhub/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer mints the bearer credential returned by register and login.
type TokenIssuer interface {
	IssueToken(userID uint, username string) (string, error)
}

// AuthResult is the body of a successful register or login.
type AuthResult struct {
	Token string             `json:"token"`
	User  models.UserProfile `json:"user"`
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type AuthService struct {
	users            repository.UserRepository
	tokens           TokenIssuer
	lockoutThreshold int
	bcryptCost       int
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, lockoutThreshold int) *AuthService {
	if lockoutThreshold <= 0 {
		lockoutThreshold = models.DefaultLockoutThreshold
	}
	return &AuthService{
		users:            users,
		tokens:           tokens,
		lockoutThreshold: lockoutThreshold,
		bcryptCost:       bcrypt.DefaultCost,
	}
}

// dummyHash is compared against when the username is unknown so the
// response time does not reveal whether the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("socialhub-timing-equalizer"), bcrypt.DefaultCost)
	return h
})

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	email := validation.NormalizeEmail(in.Email)

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}
	existing, err = s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already in use")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    email,
		Password: string(hashed),
	}
	// a concurrent registration still surfaces as CONFLICT from the unique index
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// Login authenticates username and password. A locked account is rejected
// before the password is checked, so correct credentials do not bypass the
// lock.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth", "Login")
	result, err := s.login(ctx, strings.TrimSpace(username), password)
	observability.EndSpan(span, err)
	return result, err
}

func (s *AuthService) login(ctx context.Context, username, password string) (*AuthResult, error) {
	if username == "" || password == "" {
		return nil, models.NewValidationError("Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
		return nil, models.NewAuthenticationError("Invalid username or password")
	}

	if user.Locked {
		middleware.Logger.WarnContext(ctx, "Login attempt on locked account", "user_id", user.ID)
		return nil, models.NewAccountLockedError()
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		observability.LoginFailures.Inc()
		state, err := s.users.RecordFailedLogin(ctx, user.ID, s.lockoutThreshold)
		if err != nil {
			return nil, err
		}
		if state.Locked {
			observability.AccountLockouts.Inc()
			middleware.Logger.WarnContext(ctx, "Account locked after failed logins",
				"user_id", user.ID, "failed_attempts", state.FailedLoginAttempts)
			return nil, models.NewAccountLockedError()
		}
		middleware.Logger.WarnContext(ctx, "Failed login",
			"user_id", user.ID, "failed_attempts", state.FailedLoginAttempts)
		return nil, models.NewAuthenticationError("Invalid username or password")
	}

	if err := s.users.RecordSuccessfulLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	user.FailedLoginAttempts = 0
	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.IssueToken(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user.Profile()}, nil
}

// UnlockAccount clears the lockout of targetID. Only admins may call it.
func (s *AuthService) UnlockAccount(ctx context.Context, adminID, targetID uint) error {
	if err := requireAdmin(ctx, s.users, adminID); err != nil {
		return err
	}
	if err := s.users.Unlock(ctx, targetID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Account unlocked", "user_id", targetID, "admin_id", adminID)
	return nil
}

// UnlockByUsername is the operator path used by the admin CLI.
func (s *AuthService) UnlockByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.LockStatus(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.users.Unlock(ctx, user.ID); err != nil {
		return nil, err
	}
	user.Locked, user.FailedLoginAttempts, user.LockedAt = false, 0, nil
	return user, nil
}

// LockStatus loads the account named username including its lockout columns.
func (s *AuthService) LockStatus(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

func requireAdmin(ctx context.Context, users repository.UserRepository, userID uint) error {
	caller, err := users.GetByID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return models.NewUnauthorizedError("Admin privileges required")
		}
		return err
	}
	if !caller.IsAdmin {
		return models.NewUnauthorizedError("Admin privileges required")
	}
	return nil
}
