package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 5, 24, 14, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	svc := NewService(db, nil)
	svc.now = func() time.Time { return testNow }
	return svc, db
}

func createPost(t *testing.T, db *gorm.DB, author *models.User, body string, age time.Duration, likes int) *models.Post {
	t.Helper()
	p := &models.Post{
		UserID:    author.ID,
		Body:      body,
		LikeCount: likes,
		CreatedAt: testNow.Add(-age),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func itemIDs(items []TimelineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestRankItems(t *testing.T) {
	svc := &Service{weights: NewService(nil, nil).weights, now: func() time.Time { return testNow }}

	items := []TimelineItem{
		{ID: "recent", Source: SourceRecent, CreatedAt: testNow.Add(-30 * time.Minute),
			Post: &models.Post{LikeCount: 0, CreatedAt: testNow.Add(-30 * time.Minute)}},
		{ID: "following", Source: SourceFollowing, CreatedAt: testNow.Add(-2 * time.Hour),
			Post: &models.Post{LikeCount: 2, CreatedAt: testNow.Add(-2 * time.Hour)}},
		{ID: "trending", Source: SourceTrending, CreatedAt: testNow.Add(-3 * time.Hour),
			Post: &models.Post{LikeCount: 40, CreatedAt: testNow.Add(-3 * time.Hour)}},
		{ID: "stale", Source: SourceFollowing, CreatedAt: testNow.Add(-10 * 24 * time.Hour),
			Post: &models.Post{LikeCount: 0, CreatedAt: testNow.Add(-10 * 24 * time.Hour)}},
	}

	svc.rankItems(items)

	// trending: 1.0 * 1.3 * (1+ln 41) = 6.13; following: 1.5 * 1.3 * (1+ln 3) = 4.09
	// recent: 0.7 * 1.5 * 1 = 1.05; stale: 1.5 * 0.8 * 1 = 1.2
	assert.Equal(t, []string{"trending", "following", "stale", "recent"}, itemIDs(items))
	for _, it := range items {
		assert.Greater(t, it.Score, 0.0)
	}
}

func TestRankItemsTieBreak(t *testing.T) {
	svc := &Service{weights: NewService(nil, nil).weights, now: func() time.Time { return testNow }}
	created := testNow.Add(-2 * time.Hour)
	items := []TimelineItem{
		{ID: "b", Source: SourceRecent, CreatedAt: created, Post: &models.Post{CreatedAt: created}},
		{ID: "a", Source: SourceRecent, CreatedAt: created, Post: &models.Post{CreatedAt: created}},
	}
	svc.rankItems(items)
	assert.Equal(t, []string{"a", "b"}, itemIDs(items))
}

func TestRecencyBoost(t *testing.T) {
	assert.Equal(t, 1.5, recencyBoost(10*time.Minute))
	assert.Equal(t, 1.3, recencyBoost(3*time.Hour))
	assert.Equal(t, 1.1, recencyBoost(12*time.Hour))
	assert.Equal(t, 1.0, recencyBoost(72*time.Hour))
	assert.Equal(t, 0.8, recencyBoost(200*time.Hour))
}

func TestGetTimeline(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, db, "viewer")
	followed := testutil.CreateUser(t, db, "followed")
	stranger := testutil.CreateUser(t, db, "stranger")
	blocked := testutil.CreateUser(t, db, "blocked")
	banned := testutil.CreateUser(t, db, "banned", testutil.Banned)

	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FolloweeID: followed.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FolloweeID: banned.ID}).Error)
	require.NoError(t, db.Create(&models.Block{BlockerID: viewer.ID, BlockedID: blocked.ID}).Error)

	fromFollowed := createPost(t, db, followed, "box box", time.Hour, 3)
	fromStranger := createPost(t, db, stranger, "lights out", 2*time.Hour, 30)
	fromBlocked := createPost(t, db, blocked, "spam", 30*time.Minute, 100)
	fromBanned := createPost(t, db, banned, "more spam", 30*time.Minute, 100)
	own := createPost(t, db, viewer, "my take", 10*time.Minute, 0)

	resp, err := svc.GetTimeline(ctx, viewer.ID, 20, 0)
	require.NoError(t, err)

	ids := itemIDs(resp.Items)
	assert.Contains(t, ids, fromFollowed.ID)
	assert.Contains(t, ids, fromStranger.ID)
	assert.NotContains(t, ids, fromBlocked.ID)
	assert.NotContains(t, ids, fromBanned.ID)
	assert.Empty(t, resp.Meta.Errors)

	// Each post appears once even when several sources return it
	seen := map[string]int{}
	for _, id := range ids {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}

	assert.Equal(t, 1, resp.Meta.FollowingCount)
	assert.GreaterOrEqual(t, resp.Meta.RecentCount, 2)

	var followedItem TimelineItem
	for _, it := range resp.Items {
		if it.ID == fromFollowed.ID {
			followedItem = it
		}
	}
	assert.Equal(t, SourceFollowing, followedItem.Source)
	require.NotNil(t, followedItem.Author)
	assert.Equal(t, "followed", followedItem.Author.Username)

	// Own posts with no engagement never reach the viewer's timeline
	assert.NotContains(t, ids, own.ID)
}

func TestGetTimelineIsTraced(t *testing.T) {
	rec := testutil.RecordSpans()
	svc, db := newTestService(t)
	viewer := testutil.CreateUser(t, db, "viewer")

	_, err := svc.GetTimeline(context.Background(), viewer.ID, 37, 0)
	require.NoError(t, err)

	span := testutil.FindSpan(rec, "feed.get", "feed.limit", "37")
	require.NotNil(t, span)
	assert.Contains(t, span.Attributes(), attribute.String("feed.mode", ModeFollowing))
}

func TestGetTimelinePagination(t *testing.T) {
	svc, db := newTestService(t)
	viewer := testutil.CreateUser(t, db, "viewer")
	author := testutil.CreateUser(t, db, "author")
	for i := 0; i < 5; i++ {
		createPost(t, db, author, "post", time.Duration(i+1)*time.Hour, 0)
	}

	first, err := svc.GetTimeline(context.Background(), viewer.ID, 2, 0)
	require.NoError(t, err)
	assert.Len(t, first.Items, 2)
	assert.True(t, first.Meta.HasMore)

	last, err := svc.GetTimeline(context.Background(), viewer.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, last.Items, 1)
	assert.False(t, last.Meta.HasMore)

	past, err := svc.GetTimeline(context.Background(), viewer.ID, 2, 50)
	require.NoError(t, err)
	assert.Empty(t, past.Items)
}

func TestGetPosts(t *testing.T) {
	svc, db := newTestService(t)
	viewer := testutil.CreateUser(t, db, "viewer")
	author := testutil.CreateUser(t, db, "author")

	older := createPost(t, db, author, "older but loved", 20*time.Hour, 50)
	newer := createPost(t, db, author, "fresh", 5*time.Minute, 0)
	mid := createPost(t, db, author, "warm", 2*time.Hour, 5)

	t.Run("new", func(t *testing.T) {
		resp, err := svc.GetPosts(context.Background(), viewer.ID, ModeNew, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{newer.ID, mid.ID, older.ID}, itemIDs(resp.Items))
		assert.False(t, resp.Meta.HasMore)
	})

	t.Run("hot", func(t *testing.T) {
		resp, err := svc.GetPosts(context.Background(), viewer.ID, ModeHot, 10, 0)
		require.NoError(t, err)
		// mid: 5/4^1.5 = 0.625, older: 50/22^1.5 = 0.48, newer: 0
		assert.Equal(t, []string{mid.ID, older.ID, newer.ID}, itemIDs(resp.Items))
	})
}

func TestTrending(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	banned := testutil.CreateUser(t, db, "banned", testutil.Banned)

	hot := createPost(t, db, author, "hot", time.Hour, 10)
	warm := createPost(t, db, author, "warm", 5*time.Hour, 10)
	createPost(t, db, author, "ancient", 3*24*time.Hour, 500)
	createPost(t, db, banned, "banned", time.Hour, 500)

	resp, err := svc.Trending(ctx, TrendingPosts, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, hot.ID, resp.Items[0].ID)
	assert.Equal(t, warm.ID, resp.Items[1].ID)
	assert.Equal(t, "24h", resp.Window)

	week, err := svc.Trending(ctx, TrendingPosts, 7*24*time.Hour, 10)
	require.NoError(t, err)
	assert.Len(t, week.Items, 3)

	poll := &models.Poll{UserID: author.ID, Question: "Who wins Monaco?", VoteCount: 12, CreatedAt: testNow.Add(-time.Hour),
		Options: []models.PollOption{{Text: "Charles", Position: 1}, {Text: "Max", Position: 2}}}
	require.NoError(t, db.Create(poll).Error)

	polls, err := svc.Trending(ctx, TrendingPolls, 24*time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, polls.Items, 1)
	require.NotNil(t, polls.Items[0].Poll)
	assert.Len(t, polls.Items[0].Poll.Options, 2)
	assert.Greater(t, polls.Items[0].Score, 0.0)
}

func TestParseTrendingParams(t *testing.T) {
	k, err := ParseTrendingKind("")
	require.NoError(t, err)
	assert.Equal(t, TrendingPosts, k)
	_, err = ParseTrendingKind("videos")
	assert.ErrorIs(t, err, ErrUnknownTrendingKind)

	w, err := ParseWindow("7d")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, w)
	_, err = ParseWindow("1y")
	assert.ErrorIs(t, err, ErrUnknownWindow)
}
