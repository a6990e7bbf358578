package search

import (
	"time"

	"github.com/zfogg/paddock/internal/models"
)

// UserDocument is the indexed shape of a user
type UserDocument struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Bio           string    `json:"bio"`
	Country       string    `json:"country"`
	FollowerCount int       `json:"follower_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// PollDocument is the indexed shape of a poll
type PollDocument struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Question    string    `json:"question"`
	Description string    `json:"description"`
	Options     []string  `json:"options"`
	Tags        []string  `json:"tags"`
	VoteCount   int       `json:"vote_count"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"created_at"`
}

// GridDocument is the indexed shape of a grid
type GridDocument struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Season    int       `json:"season"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}

func UserToDocument(u *models.User) UserDocument {
	return UserDocument{
		ID:            u.ID,
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		Bio:           u.Bio,
		Country:       u.Country,
		FollowerCount: u.FollowerCount,
		CreatedAt:     u.CreatedAt,
	}
}

// PollToDocument expects Options to be loaded
func PollToDocument(p *models.Poll, now time.Time) PollDocument {
	options := make([]string, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, o.Text)
	}
	return PollDocument{
		ID:          p.ID,
		UserID:      p.UserID,
		Question:    p.Question,
		Description: p.Description,
		Options:     options,
		Tags:        []string(p.Tags),
		VoteCount:   p.VoteCount,
		Closed:      p.IsClosed(now),
		CreatedAt:   p.CreatedAt,
	}
}

func GridToDocument(g *models.Grid) GridDocument {
	return GridDocument{
		ID:        g.ID,
		UserID:    g.UserID,
		Title:     g.Title,
		Kind:      string(g.Kind),
		Season:    g.Season,
		LikeCount: g.LikeCount,
		CreatedAt: g.CreatedAt,
	}
}
