package models

import (
	"time"

	"gorm.io/gorm"
)

// GridKind is what a grid ranks
type GridKind string

const (
	GridDrivers GridKind = "drivers"
	GridTeams   GridKind = "teams"
)

// Valid reports whether k is a known kind
func (k GridKind) Valid() bool {
	return k == GridDrivers || k == GridTeams
}

// Grid is a user's ranked list of drivers or teams for a season
type Grid struct {
	ID      string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID  string      `gorm:"not null;index" json:"user_id"`
	User    User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title   string      `gorm:"not null" json:"title"`
	Kind    GridKind    `gorm:"not null;index:idx_grids_kind_season" json:"kind"`
	Season  int         `gorm:"not null;index:idx_grids_kind_season" json:"season"`
	Entries []GridEntry `gorm:"foreignKey:GridID" json:"entries"`

	LikeCount    int `gorm:"default:0" json:"like_count"`
	CommentCount int `gorm:"default:0" json:"comment_count"`
	ReportCount  int `gorm:"default:0" json:"report_count"`

	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (g *Grid) BeforeCreate(tx *gorm.DB) error {
	assignID(&g.ID)
	return nil
}

// GridEntry places a driver or team at a 1-based position
type GridEntry struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	GridID    string `gorm:"not null;index" json:"grid_id"`
	SubjectID string `gorm:"not null;index" json:"subject_id"`
	Position  int    `gorm:"not null" json:"position"`
}

func (e *GridEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
