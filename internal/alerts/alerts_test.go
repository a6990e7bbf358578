package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/paddock/internal/jobs"
)

func newManager(rules ...*AlertRule) (*AlertManager, *time.Time) {
	am := NewAlertManager(rules...)
	clock := time.Date(2025, 7, 6, 14, 0, 0, 0, time.UTC)
	am.now = func() time.Time { return clock }
	return am, &clock
}

func backlogRule() *AlertRule {
	return &AlertRule{
		ID:          "backlog",
		Name:        "Backlog",
		Metric:      jobs.MetricOpenReports,
		Comparison:  AtLeast,
		Threshold:   10,
		Level:       AlertLevelWarning,
		Enabled:     true,
		CooldownSec: 600,
	}
}

func TestAlertFiresOnceWhileConditionHolds(t *testing.T) {
	am, _ := newManager(backlogRule())

	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 15}, nil)

	active := am.GetActiveAlerts()
	require.Len(t, active, 1)
	assert.Equal(t, "backlog", active[0].RuleID)
	assert.Equal(t, int64(15), active[0].Value)
	assert.Equal(t, int64(10), active[0].Threshold)
	assert.Contains(t, active[0].Message, "open_reports is 12")
}

func TestAlertResolvesWhenConditionClears(t *testing.T) {
	am, _ := newManager(backlogRule())

	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 3}, nil)

	assert.Empty(t, am.GetActiveAlerts())
	all := am.GetAllAlerts()
	require.Len(t, all, 1)
	assert.True(t, all[0].IsResolved)
	assert.Equal(t, ResolvedBySystem, all[0].ResolvedBy)
}

func TestCooldownSuppressesRefire(t *testing.T) {
	am, clock := newManager(backlogRule())

	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 0}, nil)

	*clock = clock.Add(5 * time.Minute)
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 20}, nil)
	assert.Empty(t, am.GetActiveAlerts())

	*clock = clock.Add(6 * time.Minute)
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 20}, nil)
	assert.Len(t, am.GetActiveAlerts(), 1)
	assert.Len(t, am.GetAllAlerts(), 2)
}

func TestMissingMetricLeavesAlertAlone(t *testing.T) {
	am, _ := newManager(backlogRule())

	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
	am.Evaluate(map[string]int64{}, map[string]string{jobs.MetricOpenReports: "timeout"})

	assert.Len(t, am.GetActiveAlerts(), 1)
}

func TestFailedCountsRule(t *testing.T) {
	am, _ := newManager(&AlertRule{
		ID: "failures", Metric: MetricFailedCounts, Comparison: AtLeast,
		Threshold: 1, Level: AlertLevelWarning, Enabled: true,
	})

	am.ObserveSnapshot(&jobs.Snapshot{Counts: map[string]int64{}, Errors: map[string]string{jobs.MetricPosts: "boom"}})
	assert.Len(t, am.GetActiveAlerts(), 1)

	am.ObserveSnapshot(&jobs.Snapshot{Counts: map[string]int64{jobs.MetricPosts: 4}})
	assert.Empty(t, am.GetActiveAlerts())
}

func TestAtMostComparison(t *testing.T) {
	am, _ := newManager(&AlertRule{
		ID: "quiet", Metric: jobs.MetricWebsocketConnected, Comparison: AtMost,
		Threshold: 0, Level: AlertLevelInfo, Enabled: true,
	})

	am.Evaluate(map[string]int64{jobs.MetricWebsocketConnected: 0}, nil)
	assert.Len(t, am.GetActiveAlerts(), 1)
}

func TestResolveAlertManually(t *testing.T) {
	am, _ := newManager(backlogRule())
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
	id := am.GetActiveAlerts()[0].ID

	alert, err := am.ResolveAlert(id, "admin-1")
	require.NoError(t, err)
	assert.True(t, alert.IsResolved)
	assert.Equal(t, "admin-1", alert.ResolvedBy)

	again, err := am.ResolveAlert(id, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", again.ResolvedBy)

	_, err = am.ResolveAlert("nope", "admin-1")
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestUpdateRule(t *testing.T) {
	am, _ := newManager(backlogRule())
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)

	threshold := int64(50)
	rule, err := am.UpdateRule("backlog", RuleUpdate{Threshold: &threshold}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), rule.Threshold)
	assert.True(t, rule.Enabled)

	disabled := false
	_, err = am.UpdateRule("backlog", RuleUpdate{Enabled: &disabled}, "admin-1")
	require.NoError(t, err)
	assert.Empty(t, am.GetActiveAlerts())

	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 500}, nil)
	assert.Empty(t, am.GetActiveAlerts())

	_, err = am.UpdateRule("missing", RuleUpdate{}, "admin-1")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestPruneKeepsOpenAlerts(t *testing.T) {
	am, clock := newManager(backlogRule())
	am.maxAlerts = 2
	am.rules["backlog"].CooldownSec = 0

	for i := 0; i < 3; i++ {
		am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)
		am.Evaluate(map[string]int64{jobs.MetricOpenReports: 0}, nil)
		*clock = clock.Add(time.Minute)
	}
	am.Evaluate(map[string]int64{jobs.MetricOpenReports: 12}, nil)

	assert.LessOrEqual(t, len(am.GetAllAlerts()), 2)
	assert.Len(t, am.GetActiveAlerts(), 1)
}

func TestDefaultRulesAreValid(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range DefaultRules() {
		assert.False(t, seen[r.ID], "duplicate rule %s", r.ID)
		seen[r.ID] = true
		assert.NotEmpty(t, r.Metric)
		assert.True(t, r.Enabled)
	}
	assert.Len(t, NewAlertManager(DefaultRules()...).GetAllRules(), len(seen))
}
