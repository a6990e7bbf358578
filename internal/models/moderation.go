package models

import (
	"time"

	"gorm.io/gorm"
)

// ReportStatus tracks a report through moderation
type ReportStatus string

const (
	ReportOpen      ReportStatus = "open"
	ReportDismissed ReportStatus = "dismissed"
	ReportRemoved   ReportStatus = "removed"
)

// Report flags a piece of content or a user for moderators
type Report struct {
	ID         string       `gorm:"primaryKey;type:uuid" json:"id"`
	ReporterID string       `gorm:"not null;index" json:"reporter_id"`
	TargetType TargetType   `gorm:"not null;index:idx_reports_target" json:"target_type"`
	TargetID   string       `gorm:"not null;index:idx_reports_target" json:"target_id"`
	Reason     string       `gorm:"type:text;not null" json:"reason"`
	Status     ReportStatus `gorm:"not null;default:open;index" json:"status"`
	ResolvedBy *string      `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	if r.Status == "" {
		r.Status = ReportOpen
	}
	return nil
}

// ContactMessage is a contact-form submission
type ContactMessage struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	Email     string     `gorm:"not null" json:"email"`
	Subject   string     `gorm:"not null" json:"subject"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	IP        string     `json:"ip"`
	UserID    *string    `gorm:"type:uuid" json:"user_id,omitempty"`
	Forwarded bool       `gorm:"default:false" json:"forwarded"`
	HandledAt *time.Time `json:"handled_at,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// ChatMessage is the persisted copy of a live-chat message
type ChatMessage struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	RoomID    string     `gorm:"not null;index:idx_chat_room_created" json:"room_id"`
	UserID    string     `gorm:"not null;index" json:"user_id"`
	User      User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body      string     `gorm:"type:text;not null" json:"body"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
	DeletedBy *string    `gorm:"type:uuid" json:"-"`
	CreatedAt time.Time  `gorm:"index:idx_chat_room_created" json:"created_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// ChatSettings is a single-row table holding the global chat toggle
type ChatSettings struct {
	ID        int       `gorm:"primaryKey" json:"-"`
	Enabled   bool      `json:"enabled"`
	UpdatedBy *string   `gorm:"type:uuid" json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatSettingsID is the primary key of the only ChatSettings row
const ChatSettingsID = 1
