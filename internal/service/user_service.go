package service

import (
	"context"
	"time"

	"socialhub/internal/events"
	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/repository"
	"socialhub/internal/validation"
)

// UserService owns profiles and the follow graph.
type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	events     events.Publisher
}

type UpdateProfileInput struct {
	UserID         uint
	Bio            *string
	ProfilePicture *string
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository, publisher events.Publisher) *UserService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &UserService{userRepo: userRepo, followRepo: followRepo, events: publisher}
}

func (s *UserService) GetProfile(ctx context.Context, id uint) (*models.UserProfile, error) {
	return s.userRepo.GetProfile(ctx, id)
}

// GetMe reads the caller from the primary, bypassing the profile cache.
func (s *UserService) GetMe(ctx context.Context, userID uint) (*models.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Bio != nil {
		if len(*in.Bio) > validation.MaxBioLength {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = *in.ProfilePicture
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	profile := user.Profile()
	return &profile, nil
}

// SetAdmin grants or revokes the admin flag.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) error {
	return s.userRepo.SetAdmin(ctx, targetID, isAdmin)
}

// Follow makes followerID follow targetID. Following twice is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("Cannot follow yourself")
	}
	created, err := s.followRepo.Follow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if created {
		s.publish(ctx, s.events.UserFollowed, followerID, targetID)
	}
	return nil
}

// Unfollow removes the edge followerID -> targetID if present.
func (s *UserService) Unfollow(ctx context.Context, followerID, targetID uint) error {
	if followerID == targetID {
		return models.NewValidationError("Cannot unfollow yourself")
	}
	removed, err := s.followRepo.Unfollow(ctx, followerID, targetID)
	if err != nil {
		return err
	}
	if removed {
		s.publish(ctx, s.events.UserUnfollowed, followerID, targetID)
	}
	return nil
}

func (s *UserService) publish(ctx context.Context, fn func(context.Context, events.FollowChanged) error, followerID, followeeID uint) {
	evt := events.FollowChanged{FollowerID: followerID, FolloweeID: followeeID, At: time.Now().UTC()}
	if err := fn(ctx, evt); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish follow event", "error", err)
	}
}

func (s *UserService) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, followeeID)
}

func (s *UserService) ListFollowers(ctx context.Context, userID uint, limit, offset int) (models.Page[models.UserSummary], error) {
	return s.listEdges(ctx, s.followRepo.ListFollowers, userID, limit, offset)
}

func (s *UserService) ListFollowing(ctx context.Context, userID uint, limit, offset int) (models.Page[models.UserSummary], error) {
	return s.listEdges(ctx, s.followRepo.ListFollowing, userID, limit, offset)
}

func (s *UserService) listEdges(
	ctx context.Context,
	list func(context.Context, uint, int, int) ([]models.User, error),
	userID uint, limit, offset int,
) (models.Page[models.UserSummary], error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return models.Page[models.UserSummary]{}, err
	}
	limit, offset = repository.NormalizePage(limit, offset)
	users, err := list(ctx, userID, limit, offset)
	if err != nil {
		return models.Page[models.UserSummary]{}, err
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return models.NewPage(summaries, limit, offset), nil
}
