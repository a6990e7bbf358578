// Package alerts raises admin alerts when dashboard counts cross
// configured thresholds.
package alerts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zfogg/paddock/internal/jobs"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"go.uber.org/zap"
)

// AlertLevel represents the severity of an alert
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// ResolvedBySystem marks alerts closed because their condition cleared
const ResolvedBySystem = "system"

var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrRuleNotFound  = errors.New("alert rule not found")
)

// Alert represents a triggered alert
type Alert struct {
	ID         string     `json:"id"`
	RuleID     string     `json:"rule_id"`
	Metric     string     `json:"metric"`
	Level      AlertLevel `json:"level"`
	Message    string     `json:"message"`
	Value      int64      `json:"value"`
	Threshold  int64      `json:"threshold"`
	Timestamp  time.Time  `json:"timestamp"`
	IsResolved bool       `json:"is_resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
}

// RuleUpdate changes a rule in place. Nil fields are left alone.
type RuleUpdate struct {
	Enabled   *bool  `json:"enabled"`
	Threshold *int64 `json:"threshold" binding:"omitempty,min=0"`
}

// AlertManager manages alerts and rules
type AlertManager struct {
	mu        sync.RWMutex
	alerts    map[string]*Alert
	active    map[string]string // rule ID -> open alert ID
	rules     map[string]*AlertRule
	maxAlerts int
	now       func() time.Time
}

// NewAlertManager creates a manager holding rules
func NewAlertManager(rules ...*AlertRule) *AlertManager {
	am := &AlertManager{
		alerts:    make(map[string]*Alert),
		active:    make(map[string]string),
		rules:     make(map[string]*AlertRule),
		maxAlerts: 500,
		now:       time.Now,
	}
	for _, rule := range rules {
		am.AddRule(rule)
	}
	return am
}

// ObserveSnapshot evaluates every rule against a fresh dashboard snapshot
func (am *AlertManager) ObserveSnapshot(snap *jobs.Snapshot) {
	if snap == nil {
		return
	}
	am.Evaluate(snap.Counts, snap.Errors)
}

// Evaluate fires rules whose condition holds and resolves open alerts
// whose condition cleared. A rule whose metric is missing from counts is
// left as it is.
func (am *AlertManager) Evaluate(counts map[string]int64, failed map[string]string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := am.now().UTC()
	for _, rule := range am.sortedRules() {
		if !rule.Enabled {
			continue
		}
		value, known := rule.value(counts, failed)
		if !known {
			continue
		}

		openID, open := am.active[rule.ID]
		if !rule.fires(value) {
			if open {
				am.resolve(am.alerts[openID], ResolvedBySystem, now)
			}
			continue
		}

		if open {
			am.alerts[openID].Value = value
			continue
		}
		if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < rule.cooldown() {
			continue
		}
		am.trigger(rule, value, now)
	}
}

func (am *AlertManager) trigger(rule *AlertRule, value int64, now time.Time) {
	alert := &Alert{
		ID:        fmt.Sprintf("alert_%d_%s", now.UnixNano(), rule.ID),
		RuleID:    rule.ID,
		Metric:    rule.Metric,
		Level:     rule.Level,
		Message:   fmt.Sprintf("[%s] %s is %d (threshold %d)", rule.Name, rule.Metric, value, rule.Threshold),
		Value:     value,
		Threshold: rule.Threshold,
		Timestamp: now,
	}
	am.alerts[alert.ID] = alert
	am.active[rule.ID] = alert.ID
	rule.LastTriggered = &now

	metrics.Get().AlertsTriggered.WithLabelValues(rule.ID, string(rule.Level)).Inc()
	fields := []zap.Field{
		zap.String("rule", rule.ID),
		zap.String("metric", rule.Metric),
		zap.Int64("value", value),
		zap.Int64("threshold", rule.Threshold),
	}
	switch rule.Level {
	case AlertLevelCritical:
		logger.Log.Error("Alert triggered", fields...)
	case AlertLevelWarning:
		logger.Log.Warn("Alert triggered", fields...)
	default:
		logger.Log.Info("Alert triggered", fields...)
	}

	// Keep only recent alerts to avoid unbounded memory growth
	if len(am.alerts) > am.maxAlerts {
		am.pruneOldAlerts()
	}
}

func (am *AlertManager) resolve(alert *Alert, by string, now time.Time) {
	alert.IsResolved = true
	alert.ResolvedAt = &now
	alert.ResolvedBy = by
	if am.active[alert.RuleID] == alert.ID {
		delete(am.active, alert.RuleID)
	}
}

// ResolveAlert marks an alert as resolved. Resolving twice is a no-op.
func (am *AlertManager) ResolveAlert(alertID, resolvedBy string) (*Alert, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, exists := am.alerts[alertID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}
	if !alert.IsResolved {
		am.resolve(alert, resolvedBy, am.now().UTC())
	}
	cp := *alert
	return &cp, nil
}

// GetActiveAlerts returns all unresolved alerts, newest first
func (am *AlertManager) GetActiveAlerts() []Alert {
	return am.collect(func(a *Alert) bool { return !a.IsResolved })
}

// GetAllAlerts returns every retained alert, newest first
func (am *AlertManager) GetAllAlerts() []Alert {
	return am.collect(func(*Alert) bool { return true })
}

func (am *AlertManager) collect(keep func(*Alert) bool) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	out := make([]Alert, 0, len(am.alerts))
	for _, a := range am.alerts {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// AddRule adds or replaces a rule
func (am *AlertManager) AddRule(rule *AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	cp := *rule
	am.rules[rule.ID] = &cp
}

// GetAllRules returns copies of every rule ordered by ID
func (am *AlertManager) GetAllRules() []AlertRule {
	am.mu.RLock()
	defer am.mu.RUnlock()

	out := make([]AlertRule, 0, len(am.rules))
	for _, r := range am.sortedRules() {
		out = append(out, *r)
	}
	return out
}

// UpdateRule applies update to a rule. Disabling a rule resolves its
// open alert.
func (am *AlertManager) UpdateRule(ruleID string, update RuleUpdate, updatedBy string) (*AlertRule, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	rule, ok := am.rules[ruleID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, ruleID)
	}
	if update.Threshold != nil {
		rule.Threshold = *update.Threshold
	}
	if update.Enabled != nil {
		rule.Enabled = *update.Enabled
		if openID, open := am.active[rule.ID]; open && !rule.Enabled {
			am.resolve(am.alerts[openID], updatedBy, am.now().UTC())
		}
	}

	logger.Log.Info("Alert rule updated",
		zap.String("rule", rule.ID),
		zap.Bool("enabled", rule.Enabled),
		zap.Int64("threshold", rule.Threshold),
		logger.WithUserID(updatedBy))
	cp := *rule
	return &cp, nil
}

func (am *AlertManager) sortedRules() []*AlertRule {
	rules := make([]*AlertRule, 0, len(am.rules))
	for _, r := range am.rules {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules
}

// pruneOldAlerts drops the oldest resolved alerts first. Open alerts are
// never dropped.
func (am *AlertManager) pruneOldAlerts() {
	resolved := make([]*Alert, 0, len(am.alerts))
	for _, a := range am.alerts {
		if a.IsResolved {
			resolved = append(resolved, a)
		}
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Timestamp.Before(resolved[j].Timestamp) })

	excess := len(am.alerts) - am.maxAlerts
	for i := 0; i < excess && i < len(resolved); i++ {
		delete(am.alerts, resolved[i].ID)
	}
}
