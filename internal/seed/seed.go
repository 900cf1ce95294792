// Package seed fills a database with demo and fake data for development.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"socialhub/internal/middleware"
	"socialhub/internal/models"
	"socialhub/internal/repository"

	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated mesh user.
const DefaultPassword = "Password123!"

// Options configure the seeder.
type Options struct {
	// FastHash hashes passwords at bcrypt.MinCost.
	FastHash bool
	// MaxDays bounds how far back generated posts are dated.
	MaxDays int
	// RandSeed makes generated data reproducible when non-zero.
	RandSeed int64
	Now      func() time.Time
}

// Seeder writes fixtures and generated data through the repositories so the
// same rules apply as for API writes.
type Seeder struct {
	db       *gorm.DB
	opts     Options
	factory  *Factory
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	follows  repository.FollowRepository
}

func NewSeeder(db *gorm.DB, opts Options) (*Seeder, error) {
	factory, err := NewFactory(opts)
	if err != nil {
		return nil, err
	}
	return &Seeder{
		db:       db,
		opts:     opts,
		factory:  factory,
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		follows:  repository.NewFollowRepository(db),
	}, nil
}

// HasUsers reports whether any account exists.
func (s *Seeder) HasUsers(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SeedDemo applies DemoFixture unless the database already has users.
func (s *Seeder) SeedDemo(ctx context.Context) error {
	has, err := s.HasUsers(ctx)
	if err != nil {
		return err
	}
	if has {
		middleware.Logger.InfoContext(ctx, "Database already has data, skipping demo seed")
		return nil
	}
	_, err = s.ApplyFixture(ctx, DemoFixture())
	return err
}

// ApplyFixture creates the fixture's users, posts and follows. Users that
// already exist are reused and get no new posts, so the call is safe to repeat.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (map[string]*models.User, error) {
	byName := make(map[string]*models.User, len(fx.Users))
	created := make(map[string]bool, len(fx.Users))

	for _, fu := range fx.Users {
		user, isNew, err := s.ensureUser(ctx, fu)
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(fu.Username)
		byName[key] = user
		created[key] = isNew
	}

	now := s.factory.now()
	for _, fu := range fx.Users {
		author := byName[strings.ToLower(fu.Username)]
		if !created[strings.ToLower(fu.Username)] {
			continue
		}
		for _, fp := range fu.Posts {
			privacy, err := models.ParsePrivacy(fp.Privacy)
			if err != nil {
				return nil, err
			}
			post := &models.Post{
				Content:   fp.Content,
				UserID:    author.ID,
				Privacy:   privacy,
				MediaURLs: fp.Media,
				CreatedAt: now.AddDate(0, 0, -fp.DaysAgo),
			}
			if err := s.posts.Create(ctx, post); err != nil {
				return nil, fmt.Errorf("create post for %s: %w", author.Username, err)
			}
		}
	}

	for _, fu := range fx.Users {
		follower := byName[strings.ToLower(fu.Username)]
		for _, target := range fu.Follows {
			if _, err := s.follows.Follow(ctx, follower.ID, byName[strings.ToLower(target)].ID); err != nil {
				return nil, fmt.Errorf("follow %s -> %s: %w", fu.Username, target, err)
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "Fixture applied", "users", len(byName))
	return byName, nil
}

func (s *Seeder) ensureUser(ctx context.Context, fu FixtureUser) (*models.User, bool, error) {
	existing, err := s.users.GetByUsername(ctx, fu.Username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	hash, err := hashPassword(fu.Password, s.opts.FastHash)
	if err != nil {
		return nil, false, err
	}
	email := fu.Email
	if email == "" {
		email = strings.ToLower(fu.Username) + "@example.com"
	}
	user := &models.User{
		Username:       fu.Username,
		Email:          strings.ToLower(email),
		Password:       hash,
		Bio:            fu.Bio,
		ProfilePicture: fu.ProfilePicture,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create user %s: %w", fu.Username, err)
	}
	if fu.Admin {
		if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, false, err
		}
		user.IsAdmin = true
	}
	return user, true, nil
}

// SeedSocialMesh creates n fake users and has each follow a few others.
func (s *Seeder) SeedSocialMesh(ctx context.Context, n int) ([]*models.User, error) {
	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		user := s.factory.BuildUser()
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}

	edges := 0
	if len(users) > 1 {
		for i, user := range users {
			want := s.factory.IntRange(1, min(5, len(users)-1))
			for _, j := range s.factory.Pick(len(users), want+1) {
				if want == 0 {
					break
				}
				if j == i {
					continue
				}
				isNew, err := s.follows.Follow(ctx, user.ID, users[j].ID)
				if err != nil {
					return nil, fmt.Errorf("follow: %w", err)
				}
				if isNew {
					edges++
				}
				want--
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "Social mesh seeded", "users", len(users), "follows", edges)
	return users, nil
}

// SeedEngagement creates numPosts posts by random users, then likes and
// comments from users who can see each post.
func (s *Seeder) SeedEngagement(ctx context.Context, users []*models.User, numPosts int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, numPosts)
	for i := 0; i < numPosts; i++ {
		author := users[s.factory.IntRange(0, len(users)-1)]
		post := s.factory.BuildPost(author)
		if err := s.posts.Create(ctx, post); err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		posts = append(posts, post)
	}

	likes, comments := 0, 0
	for _, post := range posts {
		for _, j := range s.factory.Pick(len(users), s.factory.IntRange(0, len(users))) {
			viewer := users[j]
			if _, err := s.posts.GetVisible(ctx, post.ID, viewer.ID); err != nil {
				if models.ErrorCode(err) == models.CodeNotFound {
					continue
				}
				return nil, err
			}
			if isNew, err := s.posts.Like(ctx, viewer.ID, post.ID); err != nil {
				return nil, err
			} else if isNew {
				likes++
			}
			if s.factory.IntRange(0, 3) == 0 {
				if err := s.comments.Create(ctx, s.factory.BuildComment(viewer, post)); err != nil {
					return nil, err
				}
				comments++
			}
		}
	}

	middleware.Logger.InfoContext(ctx, "Engagement seeded", "posts", len(posts), "likes", likes, "comments", comments)
	return posts, nil
}

// ClearAll deletes every row of the social tables, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.Like{}, &models.Comment{}, &models.PostMedia{}, &models.Post{}, &models.Follow{}, &models.User{},
		} {
			// Each delete needs its own statement; a shared one keeps the first table.
			del := tx.Session(&gorm.Session{AllowGlobalUpdate: true, NewDB: true}).Unscoped()
			if err := del.Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Existing data cleared")
	return nil
}
