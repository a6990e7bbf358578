package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TargetType names a likeable, commentable or reportable entity
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
	TargetPoll    TargetType = "poll"
	TargetGrid    TargetType = "grid"
	TargetUser    TargetType = "user"
	TargetChat    TargetType = "chat_message"
)

// ParseTargetType accepts singular or plural route forms ("posts", "poll")
func ParseTargetType(s string) (TargetType, error) {
	switch s {
	case "post", "posts":
		return TargetPost, nil
	case "comment", "comments":
		return TargetComment, nil
	case "poll", "polls":
		return TargetPoll, nil
	case "grid", "grids":
		return TargetGrid, nil
	case "user", "users":
		return TargetUser, nil
	case "chat_message", "chat_messages":
		return TargetChat, nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// Commentable reports whether comments can hang off this target
func (t TargetType) Commentable() bool {
	return t == TargetPost || t == TargetPoll || t == TargetGrid
}

// Likeable reports whether likes can target this type
func (t TargetType) Likeable() bool {
	return t == TargetPost || t == TargetComment || t == TargetPoll || t == TargetGrid
}

// Table is the storage table for the target type
func (t TargetType) Table() string {
	switch t {
	case TargetPost:
		return "posts"
	case TargetComment:
		return "comments"
	case TargetPoll:
		return "polls"
	case TargetGrid:
		return "grids"
	case TargetUser:
		return "users"
	case TargetChat:
		return "chat_messages"
	}
	return ""
}

// Post is a short text post with an optional image
type Post struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body     string `gorm:"type:text;not null" json:"body"`
	ImageURL string `json:"image_url,omitempty"`

	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ShareCount   int `gorm:"default:0" json:"share_count"`
	ViewCount    int `gorm:"default:0" json:"view_count"`
	ReportCount  int `gorm:"default:0" json:"report_count"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Like is a user's like on any likeable target
type Like struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string     `gorm:"not null;uniqueIndex:idx_likes_unique" json:"user_id"`
	TargetType TargetType `gorm:"not null;uniqueIndex:idx_likes_unique" json:"target_type"`
	TargetID   string     `gorm:"not null;uniqueIndex:idx_likes_unique;index" json:"target_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (l *Like) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Comment hangs off a post, poll or grid. Replies have ParentID set to a
// root comment; replies never nest further.
type Comment struct {
	ID         string     `gorm:"primaryKey;type:uuid" json:"id"`
	TargetType TargetType `gorm:"not null;index:idx_comments_target" json:"target_type"`
	TargetID   string     `gorm:"not null;index:idx_comments_target" json:"target_id"`
	UserID     string     `gorm:"not null;index" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ParentID   *string    `gorm:"type:uuid;index" json:"parent_id,omitempty"`
	Body       string     `gorm:"type:text;not null" json:"body"`

	LikeCount   int `gorm:"default:0" json:"like_count"`
	ReplyCount  int `gorm:"default:0" json:"reply_count"`
	ReportCount int `gorm:"default:0" json:"report_count"`

	IsEdited  bool       `gorm:"default:false" json:"is_edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	IsDeleted bool       `gorm:"default:false" json:"is_deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// CommentMention records an @mention inside a comment
type CommentMention struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	CommentID       string    `gorm:"not null;index" json:"comment_id"`
	MentionedUserID string    `gorm:"not null;index" json:"mentioned_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func (m *CommentMention) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}
