package service

import (
	"context"
	"errors"
	"testing"

	"socialhub/internal/models"
	"socialhub/internal/repository"
	"socialhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const goodPassword = "Correct-Horse-9"

func hashed(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func newTestAuthService(users repository.UserRepository) *AuthService {
	s := NewAuthService(users, tokenStub{}, 5)
	s.bcryptCost = bcrypt.MinCost
	return s
}

func TestAuthService_Login_UnknownUser(t *testing.T) {
	t.Parallel()
	svc := newTestAuthService(&userRepoStub{})

	_, err := svc.Login(context.Background(), "ghost", goodPassword)
	assertCode(t, err, models.CodeAuthenticationFailed)
	assert.Contains(t, err.Error(), "Invalid username or password")
}

func TestAuthService_Login_LockedSkipsPasswordCheck(t *testing.T) {
	t.Parallel()
	recorded := false
	users := &userRepoStub{
		getByUsernameFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 4, Username: "dave", Password: hashed(t, goodPassword), Locked: true}, nil
		},
		recordFailedLoginFn: func(context.Context, uint, int) (models.LockoutState, error) {
			recorded = true
			return models.LockoutState{}, nil
		},
	}
	svc := newTestAuthService(users)

	_, err := svc.Login(context.Background(), "dave", goodPassword)
	assertCode(t, err, models.CodeAccountLocked)
	assert.False(t, recorded)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	t.Parallel()
	user := &models.User{ID: 4, Username: "dave", Password: hashed(t, goodPassword)}

	tests := []struct {
		name  string
		state models.LockoutState
		want  string
	}{
		{"below threshold", models.LockoutState{FailedLoginAttempts: 2}, models.CodeAuthenticationFailed},
		{"reaching threshold", models.LockoutState{FailedLoginAttempts: 5, Locked: true}, models.CodeAccountLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotThreshold int
			svc := newTestAuthService(&userRepoStub{
				getByUsernameFn: func(context.Context, string) (*models.User, error) { u := *user; return &u, nil },
				recordFailedLoginFn: func(_ context.Context, _ uint, threshold int) (models.LockoutState, error) {
					gotThreshold = threshold
					return tt.state, nil
				},
			})
			_, err := svc.Login(context.Background(), "dave", "wrong-password")
			assertCode(t, err, tt.want)
			assert.Equal(t, 5, gotThreshold)
		})
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	t.Parallel()
	var reset bool
	svc := newTestAuthService(&userRepoStub{
		getByUsernameFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 4, Username: "dave", Email: "dave@example.com", Password: hashed(t, goodPassword), FailedLoginAttempts: 3, FollowersCount: 2}, nil
		},
		recordSuccessfulLoginFn: func(context.Context, uint) error { reset = true; return nil },
	})

	res, err := svc.Login(context.Background(), " dave ", goodPassword)
	require.NoError(t, err)
	assert.True(t, reset)
	assert.Equal(t, "token-for-dave", res.Token)
	assert.Equal(t, models.UserProfile{ID: 4, Username: "dave", Email: "dave@example.com", FollowersCount: 2}, res.User)
}

func TestAuthService_Login_TokenFailure(t *testing.T) {
	t.Parallel()
	svc := NewAuthService(&userRepoStub{
		getByUsernameFn: func(context.Context, string) (*models.User, error) {
			return &models.User{ID: 1, Username: "dave", Password: hashed(t, goodPassword)}, nil
		},
	}, tokenStub{err: errors.New("no secret")}, 0)

	_, err := svc.Login(context.Background(), "dave", goodPassword)
	assertCode(t, err, models.CodeInternal)
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()
	svc := newTestAuthService(&userRepoStub{})

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing fields", RegisterInput{Username: "alice"}},
		{"bad username", RegisterInput{Username: "a", Email: "a@example.com", Password: goodPassword}},
		{"reserved username", RegisterInput{Username: "admin", Email: "a@example.com", Password: goodPassword}},
		{"bad email", RegisterInput{Username: "alice", Email: "nope", Password: goodPassword}},
		{"weak password", RegisterInput{Username: "alice", Email: "a@example.com", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assertCode(t, err, models.CodeValidation)
		})
	}
}

func TestAuthService_Register_Conflicts(t *testing.T) {
	t.Parallel()
	taken := &models.User{ID: 9}

	_, err := newTestAuthService(&userRepoStub{
		getByUsernameFn: func(context.Context, string) (*models.User, error) { return taken, nil },
	}).Register(context.Background(), RegisterInput{Username: "alice", Email: "a@example.com", Password: goodPassword})
	assertCode(t, err, models.CodeConflict)
	assert.Contains(t, err.Error(), "Username is already taken")

	_, err = newTestAuthService(&userRepoStub{
		getByEmailFn: func(context.Context, string) (*models.User, error) { return taken, nil },
	}).Register(context.Background(), RegisterInput{Username: "alice", Email: "a@example.com", Password: goodPassword})
	assertCode(t, err, models.CodeConflict)
	assert.Contains(t, err.Error(), "Email is already in use")
}

func TestAuthService_UnlockAccountRequiresAdmin(t *testing.T) {
	t.Parallel()
	var unlocked uint
	users := &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			switch id {
			case 1:
				return &models.User{ID: 1, IsAdmin: true}, nil
			case 2:
				return &models.User{ID: 2}, nil
			}
			return nil, models.NewNotFoundError("User", id)
		},
		unlockFn: func(_ context.Context, id uint) error { unlocked = id; return nil },
	}
	svc := newTestAuthService(users)

	assertCode(t, svc.UnlockAccount(context.Background(), 2, 7), models.CodeUnauthorized)
	assertCode(t, svc.UnlockAccount(context.Background(), 99, 7), models.CodeUnauthorized)
	assert.Zero(t, unlocked)

	require.NoError(t, svc.UnlockAccount(context.Background(), 1, 7))
	assert.Equal(t, uint(7), unlocked)
}

// Five failures lock the account; the correct password is then refused until
// an admin unlocks it, after which login succeeds and the counter is zero.
func TestAuthService_LockoutFlow(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	svc := newTestAuthService(users)
	ctx := context.Background()

	res, err := svc.Register(ctx, RegisterInput{Username: "dave", Email: "Dave@Example.com", Password: goodPassword})
	require.NoError(t, err)
	assert.Equal(t, "dave@example.com", res.User.Email)
	assert.Zero(t, res.User.FollowersCount)

	for i := 1; i <= 4; i++ {
		_, err := svc.Login(ctx, "dave", "Wrong-Password-1")
		assertCode(t, err, models.CodeAuthenticationFailed)
	}
	_, err = svc.Login(ctx, "dave", "Wrong-Password-1")
	assertCode(t, err, models.CodeAccountLocked)

	_, err = svc.Login(ctx, "dave", goodPassword)
	assertCode(t, err, models.CodeAccountLocked)

	unlocked, err := svc.UnlockByUsername(ctx, "dave")
	require.NoError(t, err)
	assert.False(t, unlocked.Locked)

	res, err = svc.Login(ctx, "dave", goodPassword)
	require.NoError(t, err)
	assert.Equal(t, "token-for-dave", res.Token)

	status, err := svc.LockStatus(ctx, "dave")
	require.NoError(t, err)
	assert.Zero(t, status.FailedLoginAttempts)
	assert.False(t, status.Locked)

	_, err = svc.LockStatus(ctx, "nobody")
	assertCode(t, err, models.CodeNotFound)
}

func TestAuthService_SuccessfulLoginResetsCounter(t *testing.T) {
	t.Parallel()
	db := testutil.NewSQLiteDB(t)
	svc := newTestAuthService(repository.NewUserRepository(db))
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "erin", Email: "erin@example.com", Password: goodPassword})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, "erin", "Wrong-Password-1")
	}
	_, err = svc.Login(ctx, "erin", goodPassword)
	require.NoError(t, err)

	status, err := svc.LockStatus(ctx, "erin")
	require.NoError(t, err)
	assert.Zero(t, status.FailedLoginAttempts)

	// the counter starts over, so four more failures do not lock
	for i := 0; i < 4; i++ {
		_, err = svc.Login(ctx, "erin", "Wrong-Password-1")
		assertCode(t, err, models.CodeAuthenticationFailed)
	}
}
