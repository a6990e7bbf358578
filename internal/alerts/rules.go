package alerts

import (
	"time"

	"github.com/zfogg/paddock/internal/jobs"
)

// MetricFailedCounts is a pseudo metric: how many dashboard counts failed
// in the last refresh
const MetricFailedCounts = "failed_counts"

// Comparison says which side of the threshold fires
type Comparison string

const (
	AtLeast Comparison = ">="
	AtMost  Comparison = "<="
)

// AlertRule defines conditions that trigger an alert
type AlertRule struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Metric        string     `json:"metric"`
	Comparison    Comparison `json:"comparison"`
	Threshold     int64      `json:"threshold"`
	Level         AlertLevel `json:"level"`
	Enabled       bool       `json:"enabled"`
	CooldownSec   int        `json:"cooldown_sec"` // Prevent alert spamming
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
}

func (r *AlertRule) value(counts map[string]int64, failed map[string]string) (int64, bool) {
	if r.Metric == MetricFailedCounts {
		return int64(len(failed)), true
	}
	v, ok := counts[r.Metric]
	return v, ok
}

func (r *AlertRule) fires(v int64) bool {
	if r.Comparison == AtMost {
		return v <= r.Threshold
	}
	return v >= r.Threshold
}

func (r *AlertRule) cooldown() time.Duration {
	return time.Duration(r.CooldownSec) * time.Second
}

// DefaultRules watches the moderation queue, dashboard health, signups and
// realtime load
func DefaultRules() []*AlertRule {
	return []*AlertRule{
		{
			ID:          "moderation_backlog",
			Name:        "Moderation backlog",
			Metric:      jobs.MetricOpenReports,
			Comparison:  AtLeast,
			Threshold:   25,
			Level:       AlertLevelWarning,
			Enabled:     true,
			CooldownSec: 1800,
		},
		{
			ID:          "moderation_backlog_critical",
			Name:        "Moderation backlog critical",
			Metric:      jobs.MetricOpenReports,
			Comparison:  AtLeast,
			Threshold:   100,
			Level:       AlertLevelCritical,
			Enabled:     true,
			CooldownSec: 1800,
		},
		{
			ID:          "dashboard_failures",
			Name:        "Dashboard counts failing",
			Metric:      MetricFailedCounts,
			Comparison:  AtLeast,
			Threshold:   1,
			Level:       AlertLevelWarning,
			Enabled:     true,
			CooldownSec: 300,
		},
		{
			ID:          "signup_spike",
			Name:        "Signup spike",
			Metric:      jobs.MetricNewUsers24h,
			Comparison:  AtLeast,
			Threshold:   1000,
			Level:       AlertLevelInfo,
			Enabled:     true,
			CooldownSec: 3600,
		},
		{
			ID:          "websocket_load",
			Name:        "Realtime load",
			Metric:      jobs.MetricWebsocketConnected,
			Comparison:  AtLeast,
			Threshold:   5000,
			Level:       AlertLevelWarning,
			Enabled:     true,
			CooldownSec: 600,
		},
	}
}
