package repository

import (
	"context"
	"regexp"
	"testing"

	"socialhub/internal/models"
	"socialhub/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestPostRepository_LikeUsesOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "likes"`) + `.*ON CONFLICT \("user_id","post_id"\) DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	created, err := repo.Like(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// visibilityFixture builds author, follower and stranger with one post of
// each privacy level by author.
type visibilityFixture struct {
	db                         *gorm.DB
	author, follower, stranger *models.User
	public, friends, private   *models.Post
}

func newVisibilityFixture(t *testing.T) visibilityFixture {
	db := testutil.NewSQLiteDB(t)
	f := visibilityFixture{db: db}
	f.author = testutil.CreateUser(t, db, "author")
	f.follower = testutil.CreateUser(t, db, "follower")
	f.stranger = testutil.CreateUser(t, db, "stranger")
	testutil.CreateFollow(t, db, f.follower, f.author)

	f.public = testutil.CreatePost(t, db, f.author, models.PrivacyPublic, "public")
	f.friends = testutil.CreatePost(t, db, f.author, models.PrivacyFriends, "friends")
	f.private = testutil.CreatePost(t, db, f.author, models.PrivacyPrivate, "private")
	return f
}

func contents(posts []models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Content)
	}
	return out
}

func TestPostRepository_FeedVisibility(t *testing.T) {
	f := newVisibilityFixture(t)
	repo := NewPostRepository(f.db)
	ctx := context.Background()

	tests := []struct {
		name   string
		viewer uint
		want   []string
	}{
		{"author sees everything", f.author.ID, []string{"private", "friends", "public"}},
		{"follower sees friends posts", f.follower.ID, []string{"friends", "public"}},
		{"stranger sees public only", f.stranger.ID, []string{"public"}},
		{"anonymous sees public only", 0, []string{"public"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := repo.Feed(ctx, tt.viewer, 20, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, contents(posts))
		})
	}
}

func TestPostRepository_FollowingIsOneDirectional(t *testing.T) {
	f := newVisibilityFixture(t)
	repo := NewPostRepository(f.db)
	ctx := context.Background()

	// author does not follow follower back
	own := testutil.CreatePost(t, f.db, f.follower, models.PrivacyFriends, "follower friends")

	_, err := repo.GetVisible(ctx, own.ID, f.author.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	got, err := repo.GetVisible(ctx, f.friends.ID, f.follower.ID)
	require.NoError(t, err)
	assert.Equal(t, "friends", got.Content)
}

func TestPostRepository_GetVisible(t *testing.T) {
	f := newVisibilityFixture(t)
	repo := NewPostRepository(f.db)
	ctx := context.Background()

	_, err := repo.GetVisible(ctx, f.private.ID, f.follower.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	_, err = repo.GetVisible(ctx, f.friends.ID, f.stranger.ID)
	assertAppErrorCode(t, err, models.CodeNotFound)

	post, err := repo.GetVisible(ctx, f.private.ID, f.author.ID)
	require.NoError(t, err)
	assert.Equal(t, "author", post.Author.Username)

	// GetByID ignores visibility
	post, err = repo.GetByID(ctx, f.private.ID, f.stranger.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrivacyPrivate, post.Privacy)

	_, err = repo.GetByID(ctx, 9999, 0)
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestPostRepository_ListByAuthor(t *testing.T) {
	f := newVisibilityFixture(t)
	repo := NewPostRepository(f.db)
	ctx := context.Background()
	testutil.CreatePost(t, f.db, f.stranger, models.PrivacyPublic, "noise")

	posts, err := repo.ListByAuthor(ctx, f.author.ID, f.stranger.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"public"}, contents(posts))

	posts, err = repo.ListByAuthor(ctx, f.author.ID, f.follower.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"friends", "public"}, contents(posts))
}

func TestPostRepository_FeedPagination(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "pager")
	for _, c := range []string{"p1", "p2", "p3", "p4", "p5"} {
		testutil.CreatePost(t, db, author, models.PrivacyPublic, c)
	}

	posts, err := repo.Feed(ctx, 0, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"p5", "p4", "p3"}, contents(posts), "one extra row signals another page")

	posts, err = repo.Feed(ctx, 0, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, contents(posts))
}

func TestPostRepository_CreateWithMediaAndAggregates(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "creator")
	fan := testutil.CreateUser(t, db, "fan")

	post := &models.Post{
		Content:   "with pictures",
		UserID:    author.ID,
		Privacy:   models.PrivacyPublic,
		MediaURLs: []string{"https://img.example/a.png", "https://img.example/b.png"},
	}
	require.NoError(t, repo.Create(ctx, post))
	require.NotZero(t, post.ID)

	created, err := repo.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Like(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, created, "second like is a no-op")

	require.NoError(t, db.Create(&models.Comment{Content: "nice", UserID: fan.ID, PostID: post.ID}).Error)

	got, err := repo.GetByID(ctx, post.ID, fan.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.png", "https://img.example/b.png"}, got.MediaURLs)
	assert.Equal(t, int64(1), got.LikesCount)
	assert.Equal(t, int64(1), got.CommentsCount)
	assert.True(t, got.Liked)

	got, err = repo.GetByID(ctx, post.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, got.Liked)
	assert.Equal(t, "creator", got.Author.Username)

	removed, err := repo.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Unlike(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "deleter")

	post := &models.Post{Content: "doomed", UserID: author.ID, Privacy: models.PrivacyPublic, MediaURLs: []string{"https://img.example/x.png"}}
	require.NoError(t, repo.Create(ctx, post))
	_, err := repo.Like(ctx, author.ID, post.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.Comment{Content: "bye", UserID: author.ID, PostID: post.ID}).Error)

	require.NoError(t, repo.Delete(ctx, post.ID))

	for _, model := range []any{&models.Post{}, &models.Like{}, &models.Comment{}, &models.PostMedia{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T rows left behind", model)
	}

	assertAppErrorCode(t, repo.Delete(ctx, post.ID), models.CodeNotFound)
}
