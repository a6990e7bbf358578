package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Poll is a fan poll with 2..10 options
type Poll struct {
	ID             string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string         `gorm:"not null;index" json:"user_id"`
	User           User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Question       string         `gorm:"not null" json:"question"`
	Description    string         `gorm:"type:text" json:"description,omitempty"`
	MultipleChoice bool           `gorm:"default:false" json:"multiple_choice"`
	Tags           pq.StringArray `gorm:"type:text[]" json:"tags"`
	Options        []PollOption   `gorm:"foreignKey:PollID" json:"options"`

	ClosesAt *time.Time `gorm:"index" json:"closes_at,omitempty"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`

	VoterCount   int `gorm:"default:0" json:"voter_count"`
	VoteCount    int `gorm:"default:0" json:"vote_count"`
	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ReportCount  int `gorm:"default:0" json:"report_count"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Poll) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// IsClosed reports whether voting has ended at now
func (p *Poll) IsClosed(now time.Time) bool {
	if p.ClosedAt != nil {
		return true
	}
	return p.ClosesAt != nil && !now.Before(*p.ClosesAt)
}

// PollOption is one answer on a poll
type PollOption struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	PollID    string `gorm:"not null;index" json:"poll_id"`
	Text      string `gorm:"not null" json:"text"`
	Position  int    `gorm:"not null" json:"position"`
	VoteCount int    `gorm:"default:0" json:"-"`
}

func (o *PollOption) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// PollVote is one selected option. Multiple-choice voters have one row per
// selected option.
type PollVote struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	PollID    string    `gorm:"not null;uniqueIndex:idx_poll_votes_unique;index" json:"poll_id"`
	OptionID  string    `gorm:"not null;uniqueIndex:idx_poll_votes_unique" json:"option_id"`
	UserID    string    `gorm:"not null;uniqueIndex:idx_poll_votes_unique;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (v *PollVote) BeforeCreate(tx *gorm.DB) error {
	assignID(&v.ID)
	return nil
}
