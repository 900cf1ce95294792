// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultLockoutThreshold is the number of consecutive failed logins after
// which an account is locked.
const DefaultLockoutThreshold = 5

// User represents an account in the socialhub application.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Username            string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	Bio                 string     `gorm:"type:text;not null;default:''" json:"bio"`
	ProfilePicture      string     `gorm:"not null;default:''" json:"profile_picture"`
	IsAdmin             bool       `gorm:"not null;default:false" json:"is_admin"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"-"`
	Locked              bool       `gorm:"not null;default:false" json:"-"`
	LockedAt            *time.Time `json:"-"`
	// FollowersCount is computed at query time
	FollowersCount int64 `gorm:"->;-:migration" json:"followers_count"`
	// FollowingCount is computed at query time
	FollowingCount int64     `gorm:"->;-:migration" json:"following_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LockoutState is the outcome of recording a login attempt.
type LockoutState struct {
	FailedLoginAttempts int
	Locked              bool
}

// UserProfile is the public projection of a user returned by the API.
type UserProfile struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
	Bio            string `json:"bio"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

// UserSummary is the author block embedded in posts and comments.
type UserSummary struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// Profile builds the API projection of u.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Bio:            u.Bio,
		FollowersCount: u.FollowersCount,
		FollowingCount: u.FollowingCount,
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}
