package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Team is a constructor on the grid
type Team struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"not null" json:"name"`
	FullName    string `json:"full_name"`
	Base        string `json:"base"`
	PowerUnit   string `json:"power_unit"`
	Color       string `gorm:"size:7" json:"color"` // hex, e.g. #27F4D2
	LogoURL     string `json:"logo_url"`
	FirstSeason int    `json:"first_season"`
	Active      bool   `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// Driver is a race driver, optionally attached to a team for a season
type Driver struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`
	FirstName   string         `gorm:"not null" json:"first_name"`
	LastName    string         `gorm:"not null" json:"last_name"`
	Code        string         `gorm:"size:3" json:"code"` // VER, HAM, ...
	Number      int            `json:"number"`
	Nationality pq.StringArray `gorm:"type:text[]" json:"nationality"`
	TeamID      *string        `gorm:"type:uuid;index" json:"team_id,omitempty"`
	Team        *Team          `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	Season      int            `gorm:"index" json:"season"`
	PhotoURL    string         `json:"photo_url"`
	Active      bool           `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// FullName returns "First Last"
func (d *Driver) FullName() string {
	return d.FirstName + " " + d.LastName
}

// Track is a circuit on the calendar
type Track struct {
	ID         string  `gorm:"primaryKey;type:uuid" json:"id"`
	Slug       string  `gorm:"uniqueIndex;not null" json:"slug"`
	Name       string  `gorm:"not null" json:"name"`
	Country    string  `json:"country"`
	City       string  `json:"city"`
	LengthKM   float64 `json:"length_km"`
	Turns      int     `json:"turns"`
	MapURL     string  `json:"map_url"`
	FirstGrand int     `json:"first_grand_prix"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Track) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}
