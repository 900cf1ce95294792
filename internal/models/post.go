package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Privacy controls who may see a post.
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyFriends Privacy = "FRIENDS"
	PrivacyPrivate Privacy = "PRIVATE"
)

// ParsePrivacy normalizes a client supplied privacy level. An empty value
// means PUBLIC.
func ParsePrivacy(raw string) (Privacy, error) {
	switch p := Privacy(strings.ToUpper(strings.TrimSpace(raw))); p {
	case "":
		return PrivacyPublic, nil
	case PrivacyPublic, PrivacyFriends, PrivacyPrivate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown privacy level %q", raw)
	}
}

// Post represents a post in the socialhub application.
type Post struct {
	ID      uint        `gorm:"primaryKey" json:"id"`
	Content string      `gorm:"type:text;not null" json:"content"`
	UserID  uint        `gorm:"not null;index" json:"user_id"`
	User    User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Privacy Privacy     `gorm:"type:varchar(16);not null;default:PUBLIC;index" json:"privacy_level"`
	Media   []PostMedia `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	// MediaURLs mirrors Media in position order
	MediaURLs []string    `gorm:"-" json:"media_urls"`
	Author    UserSummary `gorm:"-" json:"author"`
	// LikesCount is not persisted; computed at query time
	LikesCount int64 `gorm:"->;-:migration" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int64 `gorm:"->;-:migration" json:"comments_count"`
	// Liked indicates whether the requesting user liked this post (computed)
	Liked     bool      `gorm:"->;-:migration" json:"liked"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostMedia is one uploaded media URL attached to a post.
type PostMedia struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	URL      string `gorm:"not null" json:"url"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

func (PostMedia) TableName() string { return "post_media" }

// AfterFind fills the derived presentation fields.
func (p *Post) AfterFind(*gorm.DB) error {
	p.Hydrate()
	return nil
}

// Hydrate copies loaded associations into MediaURLs and Author.
func (p *Post) Hydrate() {
	if len(p.Media) > 0 {
		p.MediaURLs = make([]string, 0, len(p.Media))
		for _, m := range p.Media {
			p.MediaURLs = append(p.MediaURLs, m.URL)
		}
	}
	if p.MediaURLs == nil {
		p.MediaURLs = []string{}
	}
	if p.User.ID != 0 {
		p.Author = p.User.Summary()
	}
}

// Like represents a user's like on a post.
// The combination of UserID and PostID is unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	Post      Post      `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
