package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"socialhub/internal/events"
	"socialhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository. Unset functions
// return zero values.
type postRepoStub struct {
	createFn       func(context.Context, *models.Post) error
	getByIDFn      func(context.Context, uint, uint) (*models.Post, error)
	getVisibleFn   func(context.Context, uint, uint) (*models.Post, error)
	feedFn         func(context.Context, uint, int, int) ([]models.Post, error)
	listByAuthorFn func(context.Context, uint, uint, int, int) ([]models.Post, error)
	deleteFn       func(context.Context, uint) error
	likeFn         func(context.Context, uint, uint) (bool, error)
	unlikeFn       func(context.Context, uint, uint) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if s.getByIDFn == nil {
		return &models.Post{ID: id}, nil
	}
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	if s.getVisibleFn == nil {
		return &models.Post{ID: id}, nil
	}
	return s.getVisibleFn(ctx, id, viewerID)
}
func (s *postRepoStub) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	if s.feedFn == nil {
		return nil, nil
	}
	return s.feedFn(ctx, viewerID, limit, offset)
}
func (s *postRepoStub) ListByAuthor(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]models.Post, error) {
	if s.listByAuthorFn == nil {
		return nil, nil
	}
	return s.listByAuthorFn(ctx, authorID, viewerID, limit, offset)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) (bool, error) {
	if s.likeFn == nil {
		return true, nil
	}
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	if s.unlikeFn == nil {
		return true, nil
	}
	return s.unlikeFn(ctx, userID, postID)
}

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn               func(context.Context, uint) (*models.User, error)
	getByUsernameFn         func(context.Context, string) (*models.User, error)
	getByEmailFn            func(context.Context, string) (*models.User, error)
	createFn                func(context.Context, *models.User) error
	recordFailedLoginFn     func(context.Context, uint, int) (models.LockoutState, error)
	recordSuccessfulLoginFn func(context.Context, uint) error
	unlockFn                func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return &models.User{ID: id}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetProfile(ctx context.Context, id uint) (*models.UserProfile, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn == nil {
		return nil, nil
	}
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		user.ID = 1
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(context.Context, *models.User) error        { return nil }
func (s *userRepoStub) SetAdmin(context.Context, uint, bool) error        { return nil }
func (s *userRepoStub) ListAdmins(context.Context) ([]models.User, error) { return nil, nil }
func (s *userRepoStub) RecordFailedLogin(ctx context.Context, id uint, threshold int) (models.LockoutState, error) {
	if s.recordFailedLoginFn == nil {
		return models.LockoutState{FailedLoginAttempts: 1}, nil
	}
	return s.recordFailedLoginFn(ctx, id, threshold)
}
func (s *userRepoStub) RecordSuccessfulLogin(ctx context.Context, id uint) error {
	if s.recordSuccessfulLoginFn == nil {
		return nil
	}
	return s.recordSuccessfulLoginFn(ctx, id)
}
func (s *userRepoStub) Unlock(ctx context.Context, id uint) error {
	if s.unlockFn == nil {
		return nil
	}
	return s.unlockFn(ctx, id)
}

type tokenStub struct {
	err error
}

func (t tokenStub) IssueToken(userID uint, username string) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	return "token-for-" + username, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       sync.Mutex
	created  []events.PostCreated
	deleted  []events.PostDeleted
	followed []events.FollowChanged
	dropped  []events.FollowChanged
	err      error
}

func (p *recordingPublisher) PostCreated(_ context.Context, e events.PostCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, e)
	return p.err
}
func (p *recordingPublisher) PostDeleted(_ context.Context, e events.PostDeleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, e)
	return p.err
}
func (p *recordingPublisher) UserFollowed(_ context.Context, e events.FollowChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.followed = append(p.followed, e)
	return p.err
}
func (p *recordingPublisher) UserUnfollowed(_ context.Context, e events.FollowChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropped = append(p.dropped, e)
	return p.err
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
