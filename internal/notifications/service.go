// Package notifications writes inbox entries and pushes them to online
// recipients.
package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// previewLength caps the snippet stored with a notification
const previewLength = 120

// Pusher delivers realtime updates. The websocket handler implements it.
type Pusher interface {
	NotifyNotification(userID string, n *models.Notification)
	UpdateNotificationCount(userID string, unread int64)
}

// Event describes something a user should hear about
type Event struct {
	Kind        models.NotificationKind
	RecipientID string
	ActorID     string
	TargetType  models.TargetType
	TargetID    string
	Preview     string
}

// Counts is the badge payload
type Counts struct {
	Unread int64 `json:"unread"`
	Total  int64 `json:"total"`
}

// PreferencesUpdate toggles individual kinds; nil fields are left alone
type PreferencesUpdate struct {
	Follows     *bool `json:"follows"`
	Likes       *bool `json:"likes"`
	Comments    *bool `json:"comments"`
	Replies     *bool `json:"replies"`
	Mentions    *bool `json:"mentions"`
	PollResults *bool `json:"poll_results"`
	EmailDigest *bool `json:"email_digest"`
}

// Service creates and reads notifications
type Service struct {
	db    *gorm.DB
	prefs *models.NotificationPreferencesChecker
	push  Pusher
	now   func() time.Time
}

// NewService creates a notifier. push may be nil.
func NewService(db *gorm.DB, push Pusher) *Service {
	return &Service{
		db:    db,
		prefs: models.NewNotificationPreferencesChecker(db),
		push:  push,
		now:   time.Now,
	}
}

// SetPusher sets the realtime sink after construction
func (s *Service) SetPusher(push Pusher) {
	s.push = push
}

// Notify stores and pushes ev. It returns (nil, nil) when the notification
// is suppressed: self-actions, disabled kinds, or an actor the recipient
// has blocked.
func (s *Service) Notify(ctx context.Context, ev Event) (*models.Notification, error) {
	if ev.RecipientID == "" {
		return nil, errors.New("notification has no recipient")
	}
	if ev.ActorID != "" && ev.ActorID == ev.RecipientID {
		return nil, nil
	}
	if !s.prefs.IsEnabled(ev.RecipientID, ev.Kind) {
		return nil, nil
	}

	db := s.db.WithContext(ctx)
	if ev.ActorID != "" {
		var blocked int64
		if err := db.Model(&models.Block{}).
			Where("blocker_id = ? AND blocked_id = ?", ev.RecipientID, ev.ActorID).
			Count(&blocked).Error; err != nil {
			return nil, err
		}
		if blocked > 0 {
			return nil, nil
		}
	}

	n := models.Notification{
		RecipientID: ev.RecipientID,
		Kind:        ev.Kind,
		TargetType:  ev.TargetType,
		TargetID:    ev.TargetID,
		Preview:     util.Truncate(ev.Preview, previewLength),
		CreatedAt:   s.now().UTC(),
	}
	if ev.ActorID != "" {
		actorID := ev.ActorID
		n.ActorID = &actorID
	}
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}
	if n.ActorID != nil {
		var actor models.User
		if err := db.First(&actor, "id = ?", *n.ActorID).Error; err == nil {
			n.Actor = &actor
		}
	}

	s.deliver(ctx, &n)
	return &n, nil
}

// NotifyAsync runs Notify without failing the caller; errors are logged
func (s *Service) NotifyAsync(ctx context.Context, ev Event) {
	if s == nil {
		return
	}
	if _, err := s.Notify(context.WithoutCancel(ctx), ev); err != nil {
		logger.Log.Warn("Failed to create notification",
			zap.String("kind", string(ev.Kind)),
			logger.WithUserID(ev.RecipientID),
			zap.Error(err))
	}
}

func (s *Service) deliver(ctx context.Context, n *models.Notification) {
	if s.push == nil {
		return
	}
	s.push.NotifyNotification(n.RecipientID, n)
	counts, err := s.Counts(ctx, n.RecipientID)
	if err != nil {
		logger.Log.Debug("Failed to count notifications", logger.WithUserID(n.RecipientID), zap.Error(err))
		return
	}
	s.push.UpdateNotificationCount(n.RecipientID, counts.Unread)
}

// List returns the recipient's notifications, newest first
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.Notification
	err := q.Preload("Actor").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, total, err
}

// Counts returns unread and total counts
func (s *Service) Counts(ctx context.Context, userID string) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", userID).Count(&c.Total).Error; err != nil {
		return c, err
	}
	err := db.Model(&models.Notification{}).Where("recipient_id = ? AND read_at IS NULL", userID).Count(&c.Unread).Error
	return c, err
}

// MarkRead marks ids as read, or every unread notification when ids is
// empty. Other users' notifications are never touched.
func (s *Service) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", userID)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("read_at", s.now().UTC())
	if res.Error != nil {
		return 0, res.Error
	}

	if s.push != nil && res.RowsAffected > 0 {
		if counts, err := s.Counts(ctx, userID); err == nil {
			s.push.UpdateNotificationCount(userID, counts.Unread)
		}
	}
	return res.RowsAffected, nil
}

// Preferences returns the user's toggles, creating defaults on first read
func (s *Service) Preferences(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	return models.NewNotificationPreferencesChecker(s.db.WithContext(ctx)).GetOrCreate(userID)
}

// UpdatePreferences applies the non-nil toggles in u
func (s *Service) UpdatePreferences(ctx context.Context, userID string, u PreferencesUpdate) (*models.NotificationPreferences, error) {
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	set(&prefs.FollowsEnabled, u.Follows)
	set(&prefs.LikesEnabled, u.Likes)
	set(&prefs.CommentsEnabled, u.Comments)
	set(&prefs.RepliesEnabled, u.Replies)
	set(&prefs.MentionsEnabled, u.Mentions)
	set(&prefs.PollResultsEnabled, u.PollResults)
	set(&prefs.EmailDigest, u.EmailDigest)

	if err := s.db.WithContext(ctx).Save(prefs).Error; err != nil {
		return nil, err
	}
	return prefs, nil
}
