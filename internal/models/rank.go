package models

import (
	"time"

	"github.com/zfogg/paddock/internal/ranking"
)

// Engagement returns the post's counters for scoring
func (p *Post) Engagement() ranking.Engagement {
	return ranking.Engagement{
		Likes:     p.LikeCount,
		Replies:   p.CommentCount,
		Views:     p.ViewCount,
		Shares:    p.ShareCount,
		Reports:   p.ReportCount,
		CreatedAt: p.CreatedAt,
	}
}

func (p Post) RankID() string                      { return p.ID }
func (p Post) RankCreatedAt() time.Time            { return p.CreatedAt }
func (p Post) RankScore(w ranking.Weights) float64 { return ranking.PopularityScore(p.Engagement(), w) }

// Engagement returns the poll's counters for scoring
func (p *Poll) Engagement() ranking.Engagement {
	return ranking.Engagement{
		Likes:     p.LikeCount,
		Replies:   p.CommentCount,
		Votes:     p.VoteCount,
		Reports:   p.ReportCount,
		CreatedAt: p.CreatedAt,
	}
}

func (p Poll) RankID() string                      { return p.ID }
func (p Poll) RankCreatedAt() time.Time            { return p.CreatedAt }
func (p Poll) RankScore(w ranking.Weights) float64 { return ranking.PopularityScore(p.Engagement(), w) }

// Engagement returns the grid's counters for scoring
func (g *Grid) Engagement() ranking.Engagement {
	return ranking.Engagement{
		Likes:     g.LikeCount,
		Replies:   g.CommentCount,
		Reports:   g.ReportCount,
		CreatedAt: g.CreatedAt,
	}
}

func (g Grid) RankID() string                      { return g.ID }
func (g Grid) RankCreatedAt() time.Time            { return g.CreatedAt }
func (g Grid) RankScore(w ranking.Weights) float64 { return ranking.PopularityScore(g.Engagement(), w) }

// Comments rank on likes and replies only
func (c Comment) RankID() string           { return c.ID }
func (c Comment) RankCreatedAt() time.Time { return c.CreatedAt }
func (c Comment) RankScore(w ranking.Weights) float64 {
	return ranking.CommentScore(ranking.Engagement{
		Likes:   c.LikeCount,
		Replies: c.ReplyCount,
		Reports: c.ReportCount,
	}, w)
}
