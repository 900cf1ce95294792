package seed

import (
	"context"
	"testing"
	"time"

	"socialhub/internal/models"
	"socialhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestSeeder(t *testing.T) (*Seeder, context.Context) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	s, err := NewSeeder(db, Options{FastHash: true, RandSeed: 42, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return s, context.Background()
}

func TestDemoFixture(t *testing.T) {
	fx := DemoFixture()
	require.Len(t, fx.Users, 1)
	demo := fx.Users[0]
	assert.Equal(t, "demouser", demo.Username)
	assert.Equal(t, "demo@example.com", demo.Email)
	require.Len(t, demo.Posts, 5)

	for i, p := range demo.Posts {
		n := i + 1
		assert.Equal(t, n, p.DaysAgo)
		assert.Equal(t, string(models.PrivacyPublic), p.Privacy)
		if n%2 == 0 {
			assert.Len(t, p.Media, 1)
		} else {
			assert.Empty(t, p.Media)
		}
	}
	assert.Equal(t, []string{"https://picsum.photos/id/20/800/600"}, demo.Posts[1].Media)
	assert.Equal(t, []string{"https://picsum.photos/id/40/800/600"}, demo.Posts[3].Media)
}

func TestParseFixture(t *testing.T) {
	valid := []byte(`
users:
  - username: ann
    password: secret
    follows: [ben]
    posts:
      - content: hello
        privacy: friends
        days_ago: 2
  - username: ben
    password: secret
`)
	fx, err := ParseFixture(valid)
	require.NoError(t, err)
	require.Len(t, fx.Users, 2)
	assert.Equal(t, []string{"ben"}, fx.Users[0].Follows)
	assert.Equal(t, 2, fx.Users[0].Posts[0].DaysAgo)

	tests := []struct {
		name string
		raw  string
	}{
		{"unknown follow", "users:\n  - {username: ann, password: x, follows: [zed]}\n"},
		{"self follow", "users:\n  - {username: ann, password: x, follows: [ann]}\n"},
		{"duplicate user", "users:\n  - {username: ann, password: x}\n  - {username: ANN, password: x}\n"},
		{"missing password", "users:\n  - {username: ann}\n"},
		{"bad privacy", "users:\n  - username: ann\n    password: x\n    posts: [{content: hi, privacy: secret}]\n"},
		{"not yaml", "users: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestSeedDemo(t *testing.T) {
	s, ctx := newTestSeeder(t)

	require.NoError(t, s.SeedDemo(ctx))

	demo, err := s.users.GetByUsername(ctx, "demouser")
	require.NoError(t, err)
	require.NotNil(t, demo)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(demo.Password), []byte(DemoPassword)))

	posts, err := s.posts.ListByAuthor(ctx, demo.ID, 0, 20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 5)
	// newest first: post #1 is one day old
	assert.Equal(t, "This is sample post #1 from the demo user.", posts[0].Content)
	assert.WithinDuration(t, fixedNow.AddDate(0, 0, -1), posts[0].CreatedAt, time.Second)
	assert.Equal(t, []string{"https://picsum.photos/id/20/800/600"}, posts[1].MediaURLs)
	for _, p := range posts {
		assert.Equal(t, models.PrivacyPublic, p.Privacy)
	}

	// a populated database is left alone
	require.NoError(t, s.SeedDemo(ctx))
	posts, err = s.posts.ListByAuthor(ctx, demo.ID, 0, 20, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 5)
}

func TestApplyFixture_FollowsAndIdempotence(t *testing.T) {
	s, ctx := newTestSeeder(t)
	fx := &Fixture{Users: []FixtureUser{
		{Username: "ann", Password: "x", Admin: true, Follows: []string{"ben"},
			Posts: []FixturePost{{Content: "friends only", Privacy: "FRIENDS"}}},
		{Username: "ben", Password: "x"},
	}}

	users, err := s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	ann, ben := users["ann"], users["ben"]
	assert.True(t, ann.IsAdmin)

	following, err := s.follows.IsFollowing(ctx, ann.ID, ben.ID)
	require.NoError(t, err)
	assert.True(t, following)

	_, err = s.ApplyFixture(ctx, fx)
	require.NoError(t, err)
	posts, err := s.posts.ListByAuthor(ctx, ann.ID, ann.ID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestSeedSocialMeshAndEngagement(t *testing.T) {
	s, ctx := newTestSeeder(t)

	users, err := s.SeedSocialMesh(ctx, 6)
	require.NoError(t, err)
	require.Len(t, users, 6)

	var follows []models.Follow
	require.NoError(t, s.db.Find(&follows).Error)
	assert.GreaterOrEqual(t, len(follows), 6)
	for _, f := range follows {
		assert.NotEqual(t, f.FollowerID, f.FolloweeID)
	}

	posts, err := s.SeedEngagement(ctx, users, 12)
	require.NoError(t, err)
	assert.Len(t, posts, 12)

	// nobody engaged with a post they cannot see
	var likes []models.Like
	require.NoError(t, s.db.Find(&likes).Error)
	for _, like := range likes {
		_, err := s.posts.GetVisible(ctx, like.PostID, like.UserID)
		assert.NoError(t, err)
	}
	var comments []models.Comment
	require.NoError(t, s.db.Find(&comments).Error)
	for _, c := range comments {
		_, err := s.posts.GetVisible(ctx, c.PostID, c.UserID)
		assert.NoError(t, err)
	}
}

func TestClearAll(t *testing.T) {
	s, ctx := newTestSeeder(t)
	require.NoError(t, s.SeedDemo(ctx))
	users, err := s.SeedSocialMesh(ctx, 6)
	require.NoError(t, err)
	_, err = s.SeedEngagement(ctx, users, 12)
	require.NoError(t, err)

	require.NoError(t, s.ClearAll(ctx))

	has, err := s.HasUsers(ctx)
	require.NoError(t, err)
	assert.False(t, has)
	for _, model := range []any{
		&models.User{}, &models.Post{}, &models.PostMedia{}, &models.Follow{}, &models.Like{}, &models.Comment{},
	} {
		var n int64
		require.NoError(t, s.db.Unscoped().Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T rows left", model)
	}

	// The demo set applies cleanly again once the tables are empty.
	require.NoError(t, s.SeedDemo(ctx))
	var posts int64
	require.NoError(t, s.db.Model(&models.Post{}).Count(&posts).Error)
	assert.EqualValues(t, len(DemoFixture().Users[0].Posts), posts)
}

func TestFactory_BuildPostStaysInWindow(t *testing.T) {
	f, err := NewFactory(Options{FastHash: true, MaxDays: 7, RandSeed: 7, Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	author := &models.User{ID: 3}

	for i := 0; i < 50; i++ {
		p := f.BuildPost(author)
		assert.Equal(t, uint(3), p.UserID)
		assert.False(t, p.CreatedAt.After(fixedNow))
		assert.False(t, p.CreatedAt.Before(fixedNow.AddDate(0, 0, -7)))
		_, err := models.ParsePrivacy(string(p.Privacy))
		assert.NoError(t, err)
	}

	u := f.BuildUser(func(u *models.User) { u.Bio = "fixed" })
	assert.Equal(t, "fixed", u.Bio)
	assert.LessOrEqual(t, len(u.Username), 30)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(DefaultPassword)))
}
