package models

import (
	"time"

	"gorm.io/gorm"
)

// Comment represents a comment on a post.
type Comment struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	UserID    uint        `gorm:"not null;index" json:"user_id"`
	PostID    uint        `gorm:"not null;index" json:"post_id"`
	User      User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Post      Post        `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Author    UserSummary `gorm:"-" json:"author"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (c *Comment) AfterFind(*gorm.DB) error {
	if c.User.ID != 0 {
		c.Author = c.User.Summary()
	}
	return nil
}
