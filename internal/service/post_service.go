package service

import (
	"context"
	"errors"
	"fmt"

	"socialhub/internal/events"
	"socialhub/internal/featureflags"
	"socialhub/internal/media"
	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/observability"
	"socialhub/internal/repository"
	"socialhub/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultMaxMediaItems      = 10
	DefaultMaxUploadSizeBytes = 10 << 20
)

type PostService struct {
	postRepo repository.PostRepository
	userRepo repository.UserRepository
	uploader media.Uploader
	events   events.Publisher
	flags    *featureflags.Manager

	maxMediaItems  int
	maxUploadBytes int
}

// PostOptions tunes media handling. Zero values take the defaults.
type PostOptions struct {
	MaxMediaItems  int
	MaxUploadBytes int
	Flags          *featureflags.Manager
}

type CreatePostInput struct {
	UserID  uint
	Content string
	// Media holds base64 or data URI payloads.
	Media   []string
	Privacy string
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// NewPostService wires the post core. A nil uploader disables media.
func NewPostService(
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	uploader media.Uploader,
	publisher events.Publisher,
	opts PostOptions,
) *PostService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if opts.MaxMediaItems <= 0 {
		opts.MaxMediaItems = DefaultMaxMediaItems
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadSizeBytes
	}
	return &PostService{
		postRepo:       postRepo,
		userRepo:       userRepo,
		uploader:       uploader,
		events:         publisher,
		flags:          opts.Flags,
		maxMediaItems:  opts.MaxMediaItems,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

// Feed returns the posts viewerID may see, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint, limit, offset int) (models.Page[models.Post], error) {
	ctx, span := observability.StartSpan(ctx, "post", "Feed", observability.ViewerAttr(viewerID))
	limit, offset = repository.NormalizePage(limit, offset)
	posts, err := s.postRepo.Feed(ctx, viewerID, limit, offset)
	observability.EndSpan(span, err)
	if err != nil {
		return models.Page[models.Post]{}, err
	}
	return models.NewPage(posts, limit, offset), nil
}

// GetPost returns NOT_FOUND both for missing posts and posts viewerID may
// not see.
func (s *PostService) GetPost(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.postRepo.GetVisible(ctx, id, viewerID)
}

// ListByAuthor is the author's timeline as seen by viewerID.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint, limit, offset int) (models.Page[models.Post], error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return models.Page[models.Post]{}, err
	}
	limit, offset = repository.NormalizePage(limit, offset)
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, viewerID, limit, offset)
	if err != nil {
		return models.Page[models.Post]{}, err
	}
	return models.NewPage(posts, limit, offset), nil
}

// CreatePost uploads every media item before anything is written; one
// failed upload aborts the post.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "post", "CreatePost",
		observability.UserAttr(in.UserID),
		attribute.Int("media.count", len(in.Media)))
	post, err := s.createPost(ctx, in)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) createPost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	privacy, err := models.ParsePrivacy(in.Privacy)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	urls, err := s.uploadMedia(ctx, in.UserID, in.Media)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Content:   in.Content,
		UserID:    in.UserID,
		Privacy:   privacy,
		MediaURLs: urls,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}

	created, err := s.postRepo.GetByID(ctx, post.ID, in.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.events.PostCreated(ctx, events.PostCreated{
		PostID:    created.ID,
		AuthorID:  created.UserID,
		Privacy:   string(created.Privacy),
		MediaURLs: created.MediaURLs,
		CreatedAt: created.CreatedAt,
	}); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish post event", "post_id", created.ID, "error", err)
	}
	return created, nil
}

// uploadMedia decodes all payloads up front, then uploads them in order.
// Duplicate URLs are collapsed.
func (s *PostService) uploadMedia(ctx context.Context, userID uint, items []string) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > s.maxMediaItems {
		return nil, models.NewValidationError(fmt.Sprintf("Too many media items (max %d)", s.maxMediaItems))
	}
	if s.uploader == nil || !s.flags.Enabled(featureflags.MediaUploads, userID) {
		return nil, models.NewValidationError("Media uploads are disabled")
	}

	type decoded struct {
		payload     []byte
		contentType string
	}
	payloads := make([]decoded, 0, len(items))
	for i, raw := range items {
		payload, contentType, err := media.DecodePayload(raw)
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Invalid media item %d: %v", i+1, err))
		}
		if len(payload) > s.maxUploadBytes {
			return nil, models.NewValidationError(fmt.Sprintf("Media item %d too large (max %dMB)", i+1, s.maxUploadBytes>>20))
		}
		payloads = append(payloads, decoded{payload, contentType})
	}

	urls := make([]string, 0, len(payloads))
	seen := make(map[string]bool, len(payloads))
	for i, p := range payloads {
		url, err := s.uploader.Upload(ctx, p.payload, p.contentType)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "Media upload failed",
				"user_id", userID, "item", i+1, "timeout", errors.Is(err, media.ErrUploadTimeout), "error", err)
			return nil, models.NewUpstreamError("Media upload failed", err)
		}
		if !seen[url] {
			seen[url] = true
			urls = append(urls, url)
		}
	}
	return urls, nil
}

// DeletePost removes the caller's own post together with its likes,
// comments and media, returning the post as it was before deletion.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "post", "DeletePost",
		observability.UserAttr(in.UserID), observability.PostAttr(in.PostID))
	post, err := s.deletePost(ctx, in)
	observability.EndSpan(span, err)
	return post, err
}

func (s *PostService) deletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, in.UserID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return nil, err
	}

	if err := s.events.PostDeleted(ctx, events.PostDeleted{PostID: post.ID, AuthorID: post.UserID}); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to publish post event", "post_id", post.ID, "error", err)
	}
	return post, nil
}

// LikePost records a like and returns the refreshed post.
func (s *PostService) LikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.postRepo.GetVisible(ctx, postID, userID); err != nil {
		return nil, err
	}
	created, err := s.postRepo.Like(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, models.NewValidationError("You have already liked this post")
	}
	return s.postRepo.GetVisible(ctx, postID, userID)
}

// UnlikePost removes the caller's like and returns the refreshed post.
// A like on a post the caller can no longer see (an unfollowed author's
// FRIENDS post) is still withdrawn; the result is then nil.
func (s *PostService) UnlikePost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	removed, err := s.postRepo.Unlike(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	post, err := s.postRepo.GetVisible(ctx, postID, userID)
	switch {
	case err == nil && !removed:
		return nil, models.NewNotFoundError("Like", postID)
	case err == nil:
		return post, nil
	case removed && models.ErrorCode(err) == models.CodeNotFound:
		return nil, nil
	default:
		return nil, err
	}
}
