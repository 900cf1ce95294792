// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"socialhub/internal/database"
	"socialhub/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewSQLiteDB returns an in-memory database with the full schema migrated.
// The pool is pinned to one connection because every :memory: connection
// is a separate database.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

// CreateUser inserts a user with a throwaway password hash.
func CreateUser(t testing.TB, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateFollow stores the edge follower -> followee.
func CreateFollow(t testing.TB, db *gorm.DB, follower, followee *models.User) {
	t.Helper()
	require.NoError(t, db.Create(&models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}).Error)
}

// CreatePost inserts a post by author with the given privacy. Each call moves
// created_at one second forward so ordering is deterministic.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, privacy models.Privacy, content string) *models.Post {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	post := &models.Post{
		Content:   content,
		UserID:    author.ID,
		Privacy:   privacy,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, int(count), 0, time.UTC),
	}
	require.NoError(t, db.Omit("User").Create(post).Error)
	return post
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := bytes.NewBuffer(nil)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}
