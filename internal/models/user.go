package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a string primary key before insert. UUIDs are generated in
// Go rather than by the database so the same models run on SQLite.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

// User is a Paddock fan account
type User struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Email       string `gorm:"uniqueIndex;not null" json:"-"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Bio         string `gorm:"type:text" json:"bio"`
	Country     string `gorm:"size:2" json:"country"` // ISO 3166-1 alpha-2
	AvatarURL   string `json:"avatar_url"`

	// Native auth
	PasswordHash *string `gorm:"type:text" json:"-"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	// Two-factor (TOTP)
	TwoFactorEnabled bool    `gorm:"default:false" json:"two_factor_enabled"`
	TwoFactorSecret  *string `gorm:"type:text" json:"-"`

	// Onboarding and fandom
	FavoriteTeamID      *string `gorm:"type:uuid" json:"favorite_team_id,omitempty"`
	FavoriteDriverID    *string `gorm:"type:uuid" json:"favorite_driver_id,omitempty"`
	OnboardingStep      string  `gorm:"default:profile" json:"onboarding_step"`
	OnboardingCompleted bool    `gorm:"default:false" json:"onboarding_completed"`

	// Cached social counters
	FollowerCount  int `gorm:"default:0" json:"follower_count"`
	FollowingCount int `gorm:"default:0" json:"following_count"`
	PostCount      int `gorm:"default:0" json:"post_count"`

	// Moderation
	IsAdmin      bool       `gorm:"default:false" json:"is_admin"`
	IsBanned     bool       `gorm:"default:false;index" json:"is_banned"`
	BannedReason string     `json:"banned_reason,omitempty"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`

	LastActiveAt *time.Time `json:"last_active_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// PublicUser is the author card embedded in feeds, comments and chat
type PublicUser struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// Public strips everything but the author card
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// PasswordReset is a single-use password reset token
type PasswordReset struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	Used      bool      `gorm:"default:false" json:"used"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PasswordReset) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Follow is a directed follower -> followee edge
type Follow struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	FollowerID string    `gorm:"not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FolloweeID string    `gorm:"not null;uniqueIndex:idx_follows_pair;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}

// Block hides the blocked user's content from the blocker
type Block struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	BlockerID string    `gorm:"not null;uniqueIndex:idx_blocks_pair" json:"blocker_id"`
	BlockedID string    `gorm:"not null;uniqueIndex:idx_blocks_pair" json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *Block) BeforeCreate(tx *gorm.DB) error {
	assignID(&b.ID)
	return nil
}
