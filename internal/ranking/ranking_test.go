package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	id      string
	created time.Time
	e       Engagement
}

func (i item) RankID() string              { return i.id }
func (i item) RankCreatedAt() time.Time    { return i.created }
func (i item) RankScore(w Weights) float64 { return CommentScore(i.e, w) }

func ids(items []item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

func TestCommentScore(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name     string
		e        Engagement
		expected float64
	}{
		{"empty", Engagement{}, 0},
		{"likes only", Engagement{Likes: 3}, 3},
		{"likes and replies", Engagement{Likes: 3, Replies: 2}, 7},
		{"reports subtract", Engagement{Likes: 10, Reports: 1}, 5},
		{"floored at zero", Engagement{Likes: 1, Reports: 3}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CommentScore(tt.e, w))
		})
	}
}

func TestPopularityScore(t *testing.T) {
	w := DefaultWeights()
	e := Engagement{Likes: 4, Replies: 1, Votes: 10, Views: 100, Shares: 1}
	// 4 + 2 + 5 + 1 + 3
	assert.InDelta(t, 15.0, PopularityScore(e, w), 1e-9)

	e.Reports = 10
	assert.Equal(t, 0.0, PopularityScore(e, w))
}

func TestHotScore(t *testing.T) {
	w := DefaultWeights()
	now := time.Date(2026, 5, 24, 14, 0, 0, 0, time.UTC)

	t.Run("decays with age", func(t *testing.T) {
		fresh := HotScore(10, now.Add(-time.Hour), now, w)
		old := HotScore(10, now.Add(-48*time.Hour), now, w)
		assert.Greater(t, fresh, old)
	})

	t.Run("future counts as age zero", func(t *testing.T) {
		future := HotScore(10, now.Add(5*time.Hour), now, w)
		current := HotScore(10, now, now, w)
		assert.Equal(t, current, future)
		assert.InDelta(t, 10/math.Pow(2, 1.5), current, 1e-9)
	})

	t.Run("non-positive raw is zero", func(t *testing.T) {
		assert.Equal(t, 0.0, HotScore(0, now, now, w))
		assert.Equal(t, 0.0, HotScore(-3, now, now, w))
		assert.Equal(t, 0.0, HotScore(math.NaN(), now, now, w))
	})

	t.Run("more likes never lowers", func(t *testing.T) {
		created := now.Add(-6 * time.Hour)
		prev := -1.0
		for likes := 0; likes < 50; likes++ {
			s := TrendingScore(Engagement{Likes: likes, CreatedAt: created}, now, w)
			assert.GreaterOrEqual(t, s, prev)
			prev = s
		}
	})
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeTop, ParseMode("top"))
	assert.Equal(t, ModeOld, ParseMode("old"))
	assert.Equal(t, ModeHot, ParseMode(""))
	assert.Equal(t, ModeHot, ParseMode("controversial"))
}

func TestSort(t *testing.T) {
	w := DefaultWeights()
	now := time.Date(2026, 5, 24, 14, 0, 0, 0, time.UTC)

	fixture := func() []item {
		return []item{
			{id: "a", created: now.Add(-30 * time.Hour), e: Engagement{Likes: 40}},
			{id: "b", created: now.Add(-1 * time.Hour), e: Engagement{Likes: 5}},
			{id: "c", created: now.Add(-2 * time.Hour), e: Engagement{Likes: 0}},
			{id: "d", created: now.Add(-10 * time.Minute), e: Engagement{Likes: 1}},
		}
	}

	t.Run("top", func(t *testing.T) {
		items := fixture()
		Sort(items, ModeTop, now, w)
		assert.Equal(t, []string{"a", "b", "d", "c"}, ids(items))
	})

	t.Run("new", func(t *testing.T) {
		items := fixture()
		Sort(items, ModeNew, now, w)
		assert.Equal(t, []string{"d", "b", "c", "a"}, ids(items))
	})

	t.Run("old", func(t *testing.T) {
		items := fixture()
		Sort(items, ModeOld, now, w)
		assert.Equal(t, []string{"a", "c", "b", "d"}, ids(items))
	})

	t.Run("hot favours recent engagement", func(t *testing.T) {
		items := fixture()
		Sort(items, ModeHot, now, w)
		// b: 5/3^1.5 = 0.96, a: 40/32^1.5 = 0.22, d: 1/2.17^1.5 = 0.31
		assert.Equal(t, []string{"b", "d", "a", "c"}, ids(items))
	})

	t.Run("unknown mode sorts as hot", func(t *testing.T) {
		hot := fixture()
		Sort(hot, ModeHot, now, w)
		unknown := fixture()
		Sort(unknown, Mode("sideways"), now, w)
		assert.Equal(t, ids(hot), ids(unknown))
	})

	t.Run("ties break newest then id", func(t *testing.T) {
		same := now.Add(-time.Hour)
		items := []item{
			{id: "z", created: same, e: Engagement{Likes: 2}},
			{id: "y", created: now.Add(-2 * time.Hour), e: Engagement{Likes: 2}},
			{id: "x", created: same, e: Engagement{Likes: 2}},
		}
		Sort(items, ModeTop, now, w)
		assert.Equal(t, []string{"x", "z", "y"}, ids(items))
	})

	t.Run("deterministic", func(t *testing.T) {
		first := fixture()
		Sort(first, ModeHot, now, w)
		for i := 0; i < 10; i++ {
			again := fixture()
			Sort(again, ModeHot, now, w)
			require.Equal(t, ids(first), ids(again))
		}
	})

	t.Run("empty", func(t *testing.T) {
		var items []item
		Sort(items, ModeHot, now, w)
		assert.Empty(t, items)
	})
}
