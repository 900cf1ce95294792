package repository

import (
	"context"
	"errors"

	"socialhub/internal/models"
	"socialhub/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post, media and like persistence.
// Read methods take the viewer so aggregates and visibility are computed for
// that caller; viewerID 0 means anonymous.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	// GetByID loads a post regardless of visibility.
	GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error)
	// GetVisible loads a post only if viewerID may see it.
	GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error)
	// Feed returns up to limit+1 visible posts, newest first.
	Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error)
	// ListByAuthor returns up to limit+1 posts by authorID visible to viewerID.
	ListByAuthor(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]models.Post, error)
	// Delete removes the post with its media, likes and comments.
	Delete(ctx context.Context, id uint) error
	// Like records a like and reports whether it was new.
	Like(ctx context.Context, userID, postID uint) (bool, error)
	// Unlike removes a like and reports whether one existed.
	Unlike(ctx context.Context, userID, postID uint) (bool, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// visibleTo restricts posts to those viewerID may read: PUBLIC, their own,
// and FRIENDS posts of authors they follow.
func visibleTo(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			"(posts.privacy = ? OR posts.user_id = ? OR (posts.privacy = ? AND posts.user_id IN (SELECT followee_id FROM follows WHERE follower_id = ?)))",
			models.PrivacyPublic, viewerID, models.PrivacyFriends, viewerID,
		)
	}
}

// withPostDetails selects the aggregates for viewerID and preloads the author
// and ordered media.
func withPostDetails(viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Select(`posts.*,
				(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count,
				(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count,
				EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked`, viewerID).
			Preload("User").
			Preload("Media", func(db *gorm.DB) *gorm.DB {
				return db.Order("post_media.position ASC")
			})
	}
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("posts.created_at DESC").Order("posts.id DESC")
}

// Create inserts the post and its media rows in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	for i, url := range post.MediaURLs {
		post.Media = append(post.Media, models.PostMedia{URL: url, Position: i})
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Omit("User").Create(post).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return r.first(ctx, id, viewerID, false)
}

func (r *postRepository) GetVisible(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return r.first(ctx, id, viewerID, true)
}

func (r *postRepository) first(ctx context.Context, id, viewerID uint, enforceVisibility bool) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", "posts")()

	q := r.db.WithContext(ctx).Scopes(withPostDetails(viewerID))
	if enforceVisibility {
		q = q.Scopes(visibleTo(viewerID))
	}

	var post models.Post
	if err := q.Where("posts.id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

func (r *postRepository) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("feed", "posts")()

	limit, offset = NormalizePage(limit, offset)
	var posts []models.Post
	err := readDB(r.db).WithContext(ctx).
		Scopes(withPostDetails(viewerID), visibleTo(viewerID), newestFirst).
		Limit(limit + 1).Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID, viewerID uint, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("list_by_author", "posts")()

	limit, offset = NormalizePage(limit, offset)
	var posts []models.Post
	err := readDB(r.db).WithContext(ctx).
		Scopes(withPostDetails(viewerID), visibleTo(viewerID), newestFirst).
		Where("posts.user_id = ?", authorID).
		Limit(limit + 1).Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Delete removes dependents explicitly so the cascade does not rely on the
// database enforcing foreign keys.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	defer observability.TrackQuery("delete", "posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostMedia{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Like relies on the unique (user_id, post_id) index; a concurrent duplicate
// is absorbed by ON CONFLICT and reported as not new.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) (bool, error) {
	defer observability.TrackQuery("like", "likes")()

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).
		Omit("Post").
		Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) (bool, error) {
	defer observability.TrackQuery("unlike", "likes")()

	res := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}
