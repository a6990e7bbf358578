// Package ranking scores comments and content for hot, top and trending
// listings. Everything here is pure: callers pass the clock in.
package ranking

import (
	"math"
	"sort"
	"time"
)

// Weights tunes the scoring functions
type Weights struct {
	Like   float64
	Reply  float64
	Vote   float64
	View   float64
	Share  float64
	Report float64

	// Gravity is the decay exponent applied to age in hours
	Gravity float64
	// AgeOffsetHours keeps brand-new items from dividing by ~0
	AgeOffsetHours float64
}

// DefaultWeights returns the weights used by the feed and comment threads
func DefaultWeights() Weights {
	return Weights{
		Like:           1.0,
		Reply:          2.0,
		Vote:           0.5,
		View:           0.01,
		Share:          3.0,
		Report:         5.0,
		Gravity:        1.5,
		AgeOffsetHours: 2.0,
	}
}

// Engagement is the raw counters behind a score
type Engagement struct {
	Likes     int
	Replies   int
	Votes     int
	Views     int
	Shares    int
	Reports   int
	CreatedAt time.Time
}

// Mode is a listing order
type Mode string

const (
	ModeHot Mode = "hot"
	ModeTop Mode = "top"
	ModeNew Mode = "new"
	ModeOld Mode = "old"
)

// ParseMode maps a query value to a Mode, falling back to hot
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeHot, ModeTop, ModeNew, ModeOld:
		return Mode(s)
	}
	return ModeHot
}

// CommentScore is likes and replies minus reports, never negative
func CommentScore(e Engagement, w Weights) float64 {
	score := float64(e.Likes)*w.Like +
		float64(e.Replies)*w.Reply -
		float64(e.Reports)*w.Report
	return floor(score)
}

// PopularityScore weighs every engagement counter, never negative
func PopularityScore(e Engagement, w Weights) float64 {
	score := float64(e.Likes)*w.Like +
		float64(e.Replies)*w.Reply +
		float64(e.Votes)*w.Vote +
		float64(e.Views)*w.View +
		float64(e.Shares)*w.Share -
		float64(e.Reports)*w.Report
	return floor(score)
}

// HotScore decays raw by age: raw / (ageHours + offset)^gravity.
// A createdAt after now counts as age zero.
func HotScore(raw float64, createdAt, now time.Time, w Weights) float64 {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	age := now.Sub(createdAt).Hours()
	if age < 0 {
		age = 0
	}
	base := age + w.AgeOffsetHours
	if base <= 0 {
		base = 1
	}
	score := raw / math.Pow(base, w.Gravity)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// TrendingScore is the popularity score decayed by age
func TrendingScore(e Engagement, now time.Time, w Weights) float64 {
	return HotScore(PopularityScore(e, w), e.CreatedAt, now, w)
}

// Rankable is anything Sort can order
type Rankable interface {
	RankID() string
	RankCreatedAt() time.Time
	// RankScore is the undecayed score (CommentScore or PopularityScore)
	RankScore(w Weights) float64
}

// Sort orders items in place for mode. The sort is stable; ties break on
// newer first, then ID ascending. Unknown modes sort as hot.
func Sort[T Rankable](items []T, mode Mode, now time.Time, w Weights) {
	mode = ParseMode(string(mode))

	keys := make([]float64, len(items))
	idx := make([]int, len(items))
	for i, it := range items {
		idx[i] = i
		switch mode {
		case ModeTop:
			keys[i] = it.RankScore(w)
		case ModeHot:
			keys[i] = HotScore(it.RankScore(w), it.RankCreatedAt(), now, w)
		}
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := items[idx[a]], items[idx[b]]
		ca, cb := ia.RankCreatedAt(), ib.RankCreatedAt()

		switch mode {
		case ModeNew:
			if !ca.Equal(cb) {
				return ca.After(cb)
			}
			return ia.RankID() < ib.RankID()
		case ModeOld:
			if !ca.Equal(cb) {
				return ca.Before(cb)
			}
			return ia.RankID() < ib.RankID()
		}

		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka != kb {
			return ka > kb
		}
		if !ca.Equal(cb) {
			return ca.After(cb)
		}
		return ia.RankID() < ib.RankID()
	})

	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

func floor(score float64) float64 {
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	return score
}
