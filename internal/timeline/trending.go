package timeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/ranking"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TrendingTTL is how long a trending listing is cached
const TrendingTTL = 60 * time.Second

// maxTrendingCandidates caps how many rows are scored per request
const maxTrendingCandidates = 500

var (
	ErrUnknownTrendingKind = errors.New("kind must be posts, polls or grids")
	ErrUnknownWindow       = errors.New("window must be 24h or 7d")
)

// TrendingKind is what a trending listing ranks
type TrendingKind string

const (
	TrendingPosts TrendingKind = "posts"
	TrendingPolls TrendingKind = "polls"
	TrendingGrids TrendingKind = "grids"
)

// ParseTrendingKind defaults to posts
func ParseTrendingKind(s string) (TrendingKind, error) {
	switch TrendingKind(s) {
	case "":
		return TrendingPosts, nil
	case TrendingPosts, TrendingPolls, TrendingGrids:
		return TrendingKind(s), nil
	}
	return "", ErrUnknownTrendingKind
}

// ParseWindow accepts 24h (the default) and 7d
func ParseWindow(s string) (time.Duration, error) {
	switch s {
	case "", "24h":
		return 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	}
	return 0, ErrUnknownWindow
}

// TrendingItem is one ranked entry; exactly one of Post, Poll or Grid is set
type TrendingItem struct {
	ID    string       `json:"id"`
	Score float64      `json:"score"`
	Post  *models.Post `json:"post,omitempty"`
	Poll  *models.Poll `json:"poll,omitempty"`
	Grid  *models.Grid `json:"grid,omitempty"`

	createdAt time.Time
}

// TrendingResponse is a trending listing
type TrendingResponse struct {
	Kind        TrendingKind   `json:"kind"`
	Window      string         `json:"window"`
	Items       []TrendingItem `json:"items"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Trending ranks content created inside window by ranking.TrendingScore.
// Results are cached in Redis for TrendingTTL.
func (s *Service) Trending(ctx context.Context, kind TrendingKind, window time.Duration, limit int) (*TrendingResponse, error) {
	windowName := "24h"
	if window > 24*time.Hour {
		windowName = "7d"
	}
	key := fmt.Sprintf("%s%s:%s:%d", cache.KeyTrendingPrefix, kind, windowName, limit)

	var cached TrendingResponse
	if err := s.cache.GetJSON(ctx, "trending", key, &cached); err == nil {
		return &cached, nil
	}

	now := s.now()
	since := now.Add(-window)
	db := s.db.WithContext(ctx)
	banned := db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)

	var items []TrendingItem
	switch kind {
	case TrendingPolls:
		var polls []models.Poll
		if err := candidates(db, &models.Poll{}, since, banned).
			Preload("Options", orderOptions).
			Find(&polls).Error; err != nil {
			return nil, err
		}
		for i := range polls {
			p := &polls[i]
			items = append(items, TrendingItem{ID: p.ID, Poll: p, createdAt: p.CreatedAt,
				Score: ranking.TrendingScore(p.Engagement(), now, s.weights)})
		}
	case TrendingGrids:
		var grids []models.Grid
		if err := candidates(db, &models.Grid{}, since, banned).
			Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
			Find(&grids).Error; err != nil {
			return nil, err
		}
		for i := range grids {
			g := &grids[i]
			items = append(items, TrendingItem{ID: g.ID, Grid: g, createdAt: g.CreatedAt,
				Score: ranking.TrendingScore(g.Engagement(), now, s.weights)})
		}
	default:
		var posts []models.Post
		if err := candidates(db, &models.Post{}, since, banned).Find(&posts).Error; err != nil {
			return nil, err
		}
		for i := range posts {
			p := &posts[i]
			items = append(items, TrendingItem{ID: p.ID, Post: p, createdAt: p.CreatedAt,
				Score: ranking.TrendingScore(p.Engagement(), now, s.weights)})
		}
	}

	sortTrending(items)
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []TrendingItem{}
	}

	resp := &TrendingResponse{Kind: kind, Window: windowName, Items: items, GeneratedAt: now}
	if err := s.cache.SetJSON(ctx, key, resp, TrendingTTL); err != nil {
		logger.Log.Warn("Failed to cache trending", zap.String("key", key), zap.Error(err))
	}
	return resp, nil
}

func candidates(db *gorm.DB, model interface{}, since time.Time, banned *gorm.DB) *gorm.DB {
	return db.Model(model).
		Preload("User").
		Where("created_at > ? AND user_id NOT IN (?)", since, banned).
		Order("created_at DESC").
		Limit(maxTrendingCandidates)
}

func orderOptions(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// sortTrending orders by score, then newest, then ID
func sortTrending(items []TrendingItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].createdAt.Equal(items[j].createdAt) {
			return items[i].createdAt.After(items[j].createdAt)
		}
		return items[i].ID < items[j].ID
	})
}
