// Package events publishes domain events for downstream consumers such as
// feed fan-out and notification workers.
package events

import (
	"context"
	"time"
)

// Subjects published on the broker.
const (
	SubjectPostCreated    = "post.created"
	SubjectPostDeleted    = "post.deleted"
	SubjectUserFollowed   = "user.followed"
	SubjectUserUnfollowed = "user.unfollowed"
)

type PostCreated struct {
	PostID    uint      `json:"post_id"`
	AuthorID  uint      `json:"author_id"`
	Privacy   string    `json:"privacy_level"`
	MediaURLs []string  `json:"media_urls"`
	CreatedAt time.Time `json:"created_at"`
}

type PostDeleted struct {
	PostID   uint `json:"post_id"`
	AuthorID uint `json:"author_id"`
}

// FollowChanged is the payload of both user.followed and user.unfollowed.
type FollowChanged struct {
	FollowerID uint      `json:"follower_id"`
	FolloweeID uint      `json:"followee_id"`
	At         time.Time `json:"at"`
}

// Publisher hands domain events to a broker. Publishing is best effort:
// callers log failures and never roll back the originating write.
type Publisher interface {
	PostCreated(ctx context.Context, evt PostCreated) error
	PostDeleted(ctx context.Context, evt PostDeleted) error
	UserFollowed(ctx context.Context, evt FollowChanged) error
	UserUnfollowed(ctx context.Context, evt FollowChanged) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PostCreated(context.Context, PostCreated) error      { return nil }
func (Noop) PostDeleted(context.Context, PostDeleted) error      { return nil }
func (Noop) UserFollowed(context.Context, FollowChanged) error   { return nil }
func (Noop) UserUnfollowed(context.Context, FollowChanged) error { return nil }
