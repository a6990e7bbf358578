package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationKind is what happened
type NotificationKind string

const (
	NotifyFollow     NotificationKind = "follow"
	NotifyLike       NotificationKind = "like"
	NotifyComment    NotificationKind = "comment"
	NotifyReply      NotificationKind = "reply"
	NotifyMention    NotificationKind = "mention"
	NotifyPollClosed NotificationKind = "poll_closed"
)

// Notification is one inbox entry
type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	RecipientID string           `gorm:"not null;index:idx_notifications_recipient" json:"recipient_id"`
	ActorID     *string          `gorm:"type:uuid" json:"actor_id,omitempty"`
	Actor       *User            `gorm:"foreignKey:ActorID" json:"actor,omitempty"`
	Kind        NotificationKind `gorm:"not null" json:"kind"`
	TargetType  TargetType       `json:"target_type,omitempty"`
	TargetID    string           `json:"target_id,omitempty"`
	Preview     string           `json:"preview,omitempty"`
	ReadAt      *time.Time       `gorm:"index" json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"index:idx_notifications_recipient" json:"created_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// NotificationPreferences holds per-kind toggles for a user
type NotificationPreferences struct {
	ID                 string `gorm:"primaryKey;type:uuid" json:"-"`
	UserID             string `gorm:"uniqueIndex;not null" json:"-"`
	FollowsEnabled     bool   `json:"follows"`
	LikesEnabled       bool   `json:"likes"`
	CommentsEnabled    bool   `json:"comments"`
	RepliesEnabled     bool   `json:"replies"`
	MentionsEnabled    bool   `json:"mentions"`
	PollResultsEnabled bool   `json:"poll_results"`
	EmailDigest        bool   `json:"email_digest"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *NotificationPreferences) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// DefaultNotificationPreferences enables every in-app kind and leaves the
// email digest off
func DefaultNotificationPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:             userID,
		FollowsEnabled:     true,
		LikesEnabled:       true,
		CommentsEnabled:    true,
		RepliesEnabled:     true,
		MentionsEnabled:    true,
		PollResultsEnabled: true,
	}
}

// Allows reports whether the kind is switched on
func (p *NotificationPreferences) Allows(kind NotificationKind) bool {
	switch kind {
	case NotifyFollow:
		return p.FollowsEnabled
	case NotifyLike:
		return p.LikesEnabled
	case NotifyComment:
		return p.CommentsEnabled
	case NotifyReply:
		return p.RepliesEnabled
	case NotifyMention:
		return p.MentionsEnabled
	case NotifyPollClosed:
		return p.PollResultsEnabled
	default:
		return true
	}
}
