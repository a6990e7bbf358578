// Package timeline builds the home feed and trending listings.
package timeline

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Sources a timeline item can come from
const (
	SourceFollowing = "following"
	SourceTrending  = "trending"
	SourceRecent    = "recent"
)

// Feed modes
const (
	ModeFollowing = "following"
	ModeHot       = "hot"
	ModeNew       = "new"
)

// hotWindow bounds how far back hot and trending candidates are loaded
const hotWindow = 7 * 24 * time.Hour

// TimelineItem represents a single item in the user's timeline
type TimelineItem struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Post      *models.Post       `json:"post"`
	Author    *models.PublicUser `json:"author,omitempty"`
	Score     float64            `json:"score"`
	Source    string             `json:"source"`
	CreatedAt time.Time          `json:"created_at"`
}

// TimelineResponse is the response from GetTimeline
type TimelineResponse struct {
	Items []TimelineItem `json:"items"`
	Meta  TimelineMeta   `json:"meta"`
}

// TimelineMeta contains metadata about the timeline response
type TimelineMeta struct {
	Mode           string            `json:"mode"`
	Limit          int               `json:"limit"`
	Offset         int               `json:"offset"`
	Count          int               `json:"count"`
	HasMore        bool              `json:"has_more"`
	FollowingCount int               `json:"following_count"`
	TrendingCount  int               `json:"trending_count"`
	RecentCount    int               `json:"recent_count"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// Service handles timeline generation and ranking
type Service struct {
	db      *gorm.DB
	cache   *cache.RedisClient
	weights ranking.Weights
	now     func() time.Time
}

// NewService creates a new timeline service. redis may be nil.
func NewService(db *gorm.DB, redis *cache.RedisClient) *Service {
	return &Service{
		db:      db,
		cache:   redis,
		weights: ranking.DefaultWeights(),
		now:     time.Now,
	}
}

// GetFeed dispatches on mode; unknown modes get the following timeline
func (s *Service) GetFeed(ctx context.Context, viewerID, mode string, limit, offset int) (*TimelineResponse, error) {
	switch mode {
	case ModeHot, ModeNew:
		return s.GetPosts(ctx, viewerID, mode, limit, offset)
	default:
		return s.GetTimeline(ctx, viewerID, limit, offset)
	}
}

// GetTimeline merges posts from followed users with trending and recent
// posts. Sources are fetched in parallel and a failing source is reported
// in Meta.Errors instead of failing the page.
func (s *Service) GetTimeline(ctx context.Context, viewerID string, limit, offset int) (resp *TimelineResponse, err error) {
	ctx, span := telemetry.GetBusinessEvents().TraceGetFeed(ctx, telemetry.FeedEventAttrs{
		Mode:   ModeFollowing,
		Limit:  limit,
		Offset: offset,
	})
	defer func() { telemetry.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		metrics.Get().FeedGenerationTime.WithLabelValues(ModeFollowing).Observe(time.Since(start).Seconds())
	}()

	// Fetch more than needed to allow for deduplication and ranking
	fetchLimit := (offset + limit) * 2
	if fetchLimit < 30 {
		fetchLimit = 30
	}

	hidden, err := s.hiddenAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	sources := []struct {
		name  string
		fetch func(context.Context) ([]models.Post, error)
	}{
		{SourceFollowing, func(ctx context.Context) ([]models.Post, error) {
			return s.followingPosts(ctx, viewerID, fetchLimit)
		}},
		{SourceTrending, func(ctx context.Context) ([]models.Post, error) {
			return s.trendingPosts(ctx, fetchLimit)
		}},
		{SourceRecent, func(ctx context.Context) ([]models.Post, error) {
			return s.recentPosts(ctx, viewerID, fetchLimit)
		}},
	}

	results := make([][]models.Post, len(sources))
	errs := make([]error, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			results[i], errs[i] = src.fetch(ctx)
			return nil
		})
	}
	_ = g.Wait()

	meta := TimelineMeta{Mode: ModeFollowing, Limit: limit, Offset: offset}
	seen := make(map[string]bool)
	items := make([]TimelineItem, 0, fetchLimit)

	for i, src := range sources {
		if errs[i] != nil {
			logger.Log.Warn("Timeline source failed", zap.String("source", src.name), zap.Error(errs[i]))
			if meta.Errors == nil {
				meta.Errors = make(map[string]string)
			}
			meta.Errors[src.name] = "unavailable"
			continue
		}

		switch src.name {
		case SourceFollowing:
			meta.FollowingCount = len(results[i])
		case SourceTrending:
			meta.TrendingCount = len(results[i])
		case SourceRecent:
			meta.RecentCount = len(results[i])
		}

		// Sources are in priority order, so the first one to claim a post wins
		for j := range results[i] {
			post := results[i][j]
			if seen[post.ID] || hidden[post.UserID] {
				continue
			}
			seen[post.ID] = true
			items = append(items, newItem(&post, src.name))
		}
	}

	s.rankItems(items)
	return paginate(items, meta, limit, offset), nil
}

// GetPosts lists every visible post in hot or new order
func (s *Service) GetPosts(ctx context.Context, viewerID, mode string, limit, offset int) (*TimelineResponse, error) {
	start := time.Now()
	defer func() {
		metrics.Get().FeedGenerationTime.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	hidden, err := s.hiddenAuthors(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	meta := TimelineMeta{Mode: mode, Limit: limit, Offset: offset}

	if mode == ModeNew {
		var posts []models.Post
		q := s.visiblePosts(ctx).Order("created_at DESC, id ASC").Limit(limit + 1).Offset(offset)
		if ids := keys(hidden); len(ids) > 0 {
			q = q.Where("user_id NOT IN ?", ids)
		}
		if err := q.Find(&posts).Error; err != nil {
			return nil, err
		}
		meta.HasMore = len(posts) > limit
		if meta.HasMore {
			posts = posts[:limit]
		}
		items := make([]TimelineItem, 0, len(posts))
		for i := range posts {
			items = append(items, newItem(&posts[i], SourceRecent))
		}
		meta.Count = len(items)
		meta.RecentCount = len(items)
		return &TimelineResponse{Items: items, Meta: meta}, nil
	}

	var posts []models.Post
	err = s.visiblePosts(ctx).
		Where("created_at > ?", s.now().Add(-hotWindow)).
		Order("created_at DESC").
		Limit(500).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	filtered := posts[:0]
	for _, p := range posts {
		if !hidden[p.UserID] {
			filtered = append(filtered, p)
		}
	}
	ranking.Sort(filtered, ranking.ModeHot, s.now(), s.weights)

	items := make([]TimelineItem, 0, len(filtered))
	for i := range filtered {
		item := newItem(&filtered[i], SourceTrending)
		item.Score = ranking.HotScore(filtered[i].RankScore(s.weights), filtered[i].CreatedAt, s.now(), s.weights)
		items = append(items, item)
	}
	meta.TrendingCount = len(items)
	return paginate(items, meta, limit, offset), nil
}

func newItem(post *models.Post, source string) TimelineItem {
	author := post.User.Public()
	return TimelineItem{
		ID:        post.ID,
		Type:      "post",
		Post:      post,
		Author:    &author,
		Source:    source,
		CreatedAt: post.CreatedAt,
	}
}

func paginate(items []TimelineItem, meta TimelineMeta, limit, offset int) *TimelineResponse {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]
	meta.Count = len(page)
	meta.HasMore = end < len(items)
	return &TimelineResponse{Items: page, Meta: meta}
}

// visiblePosts scopes to posts whose authors are not banned
func (s *Service) visiblePosts(ctx context.Context) *gorm.DB {
	db := s.db.WithContext(ctx)
	banned := db.Model(&models.User{}).Select("id").Where("is_banned = ?", true)
	return db.Model(&models.Post{}).Preload("User").Where("user_id NOT IN (?)", banned)
}

func (s *Service) followingPosts(ctx context.Context, viewerID string, limit int) ([]models.Post, error) {
	db := s.db.WithContext(ctx)
	followees := db.Model(&models.Follow{}).Select("followee_id").Where("follower_id = ?", viewerID)

	var posts []models.Post
	err := s.visiblePosts(ctx).
		Where("user_id IN (?)", followees).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// trendingPosts takes the top posts of the window by TrendingScore
func (s *Service) trendingPosts(ctx context.Context, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.visiblePosts(ctx).
		Where("created_at > ?", s.now().Add(-hotWindow)).
		Order("like_count + comment_count DESC").
		Limit(limit * 4).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}

	ranking.Sort(posts, ranking.ModeHot, s.now(), s.weights)
	out := posts[:0]
	for _, p := range posts {
		if ranking.TrendingScore(p.Engagement(), s.now(), s.weights) <= 0 {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Service) recentPosts(ctx context.Context, viewerID string, limit int) ([]models.Post, error) {
	var posts []models.Post
	err := s.visiblePosts(ctx).
		Where("user_id <> ?", viewerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// hiddenAuthors is the set of users the viewer has blocked
func (s *Service) hiddenAuthors(ctx context.Context, viewerID string) (map[string]bool, error) {
	hidden := make(map[string]bool)
	if viewerID == "" {
		return hidden, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.Block{}).
		Where("blocker_id = ?", viewerID).
		Pluck("blocked_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		hidden[id] = true
	}
	return hidden, nil
}

// sourceWeight ranks followed users above trending above merely recent
func sourceWeight(source string) float64 {
	switch source {
	case SourceFollowing:
		return 1.5
	case SourceTrending:
		return 1.0
	default:
		return 0.7
	}
}

// recencyBoost favours the last day and decays content older than a week
func recencyBoost(age time.Duration) float64 {
	switch h := age.Hours(); {
	case h < 1:
		return 1.5
	case h < 6:
		return 1.3
	case h < 24:
		return 1.1
	case h > 168:
		return 0.8
	default:
		return 1.0
	}
}

// rankItems scores items as source weight x recency x engagement and sorts
// them best first. Ties break newest first, then by ID.
func (s *Service) rankItems(items []TimelineItem) {
	now := s.now()
	for i := range items {
		item := &items[i]
		engagement := 1 + math.Log1p(ranking.PopularityScore(item.Post.Engagement(), s.weights))
		item.Score = sourceWeight(item.Source) * recencyBoost(now.Sub(item.CreatedAt)) * engagement
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
