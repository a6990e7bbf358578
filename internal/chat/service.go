package chat

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MaxMessageLength is counted in runes after trimming
	MaxMessageLength = 500
	// MaxHistory caps History's limit
	MaxHistory = 200
	// DefaultHistory is used when no limit is given
	DefaultHistory = 50
)

var (
	ErrDisabled     = errors.New("chat is disabled")
	ErrBanned       = errors.New("user is banned")
	ErrEmptyMessage = errors.New("message is empty")
	ErrTooLong      = errors.New("message is too long")
	ErrRateLimited  = errors.New("sending too fast")
	ErrInvalidRoom  = errors.New("invalid room id")
	ErrNotFound     = errors.New("message not found")
	ErrForbidden    = errors.New("not allowed to delete this message")
)

var roomIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// ValidRoomID reports whether id is a usable room name ("2026-monaco", "general")
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// Broadcaster delivers realtime events to connected clients
type Broadcaster interface {
	SendToRoom(roomID, msgType string, payload interface{})
	SendToAll(msgType string, payload interface{})
}

// StatusEvent is published when an admin flips the chat toggle
type StatusEvent struct {
	Enabled   bool      `json:"enabled"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Config tunes the service
type Config struct {
	// HistorySize is each room buffer's capacity, never below MaxHistory
	HistorySize   int
	RatePerSecond float64
	Burst         int
	Batcher       BatcherConfig
}

// DefaultConfig allows 5 messages per second with a burst of 10
func DefaultConfig() Config {
	return Config{
		HistorySize:   MaxHistory,
		RatePerSecond: 5,
		Burst:         10,
		Batcher:       DefaultBatcherConfig(),
	}
}

// Service is the live-chat entry point used by handlers
type Service struct {
	db      *gorm.DB
	cache   *cache.RedisClient
	bus     pubsub.Bus
	batcher *Batcher
	rooms   *Rooms
	limiter *Limiter
	out     Broadcaster
	now     func() time.Time
}

// NewService wires a chat service. redis may be nil; out may be set later
// with SetBroadcaster.
func NewService(db *gorm.DB, redis *cache.RedisClient, bus pubsub.Bus, cfg Config) *Service {
	if cfg.HistorySize < MaxHistory {
		cfg.HistorySize = MaxHistory
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultConfig().RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultConfig().Burst
	}
	return &Service{
		db:      db,
		cache:   redis,
		bus:     bus,
		batcher: NewBatcher(bus, cfg.Batcher),
		rooms:   NewRooms(cfg.HistorySize),
		limiter: NewLimiter(cfg.RatePerSecond, cfg.Burst),
		now:     time.Now,
	}
}

// SetBroadcaster sets where merged batches are fanned out
func (s *Service) SetBroadcaster(out Broadcaster) {
	s.out = out
}

// Rooms exposes the merged room buffers
func (s *Service) Rooms() *Rooms {
	return s.rooms
}

// Start subscribes to the bus and starts the batcher
func (s *Service) Start(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, pubsub.TopicChatBatches, s.handleBatch); err != nil {
		return err
	}
	if err := s.bus.Subscribe(ctx, pubsub.TopicChatSystem, s.handleStatus); err != nil {
		return err
	}
	s.batcher.Start()
	logger.Log.Info("Chat service started")
	return nil
}

// Stop flushes pending batches
func (s *Service) Stop() {
	s.batcher.Stop()
}

// Send validates and accepts a message into a room
func (s *Service) Send(ctx context.Context, user *models.User, roomID, body string) (*Message, error) {
	ctx, span := telemetry.GetBusinessEvents().TraceChatSend(ctx, roomID, user.ID)
	msg, err := s.send(ctx, user, roomID, body)
	telemetry.EndSpan(span, err)
	return msg, err
}

func (s *Service) send(ctx context.Context, user *models.User, roomID, body string) (*Message, error) {
	if !ValidRoomID(roomID) {
		return nil, ErrInvalidRoom
	}
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, ErrDisabled
	}
	if user.IsBanned {
		return nil, ErrBanned
	}

	body = strings.TrimSpace(body)
	switch n := utf8.RuneCountInString(body); {
	case n == 0:
		return nil, ErrEmptyMessage
	case n > MaxMessageLength:
		return nil, ErrTooLong
	}

	if !s.limiter.Allow(user.ID) {
		return nil, ErrRateLimited
	}

	row := models.ChatMessage{
		RoomID:    roomID,
		UserID:    user.ID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	msg := Message{
		ID:        row.ID,
		RoomID:    roomID,
		UserID:    user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Body:      body,
		CreatedAt: row.CreatedAt,
	}
	s.batcher.AddMessage(msg)
	metrics.Get().ChatMessagesSent.Inc()
	return &msg, nil
}

// Delete soft-deletes a message. Only its author or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor *models.User, messageID string) error {
	var row models.ChatMessage
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", messageID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if row.UserID != actor.ID && !actor.IsAdmin {
		return ErrForbidden
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&row).Updates(map[string]interface{}{
		"deleted_at": now,
		"deleted_by": actor.ID,
	}).Error; err != nil {
		return err
	}

	s.batcher.AddDeletion(row.RoomID, row.ID)
	return nil
}

// History returns the newest limit messages, oldest first. The first read
// of a room loads stored history into its buffer; later reads are served
// from the buffer.
func (s *Service) History(ctx context.Context, roomID string, limit int) ([]Message, error) {
	if !ValidRoomID(roomID) {
		return nil, ErrInvalidRoom
	}
	if limit <= 0 {
		limit = DefaultHistory
	}
	if limit > MaxHistory {
		limit = MaxHistory
	}

	buf := s.rooms.Get(roomID)
	if !s.rooms.Hydrated(roomID) {
		stored, err := s.loadHistory(ctx, roomID, MaxHistory)
		if err != nil {
			return nil, err
		}
		buf.Merge(Batch{RoomID: roomID, Messages: stored})
		s.rooms.MarkHydrated(roomID)
	}

	return buf.Latest(limit), nil
}

func (s *Service) loadHistory(ctx context.Context, roomID string, limit int) ([]Message, error) {
	var rows []models.ChatMessage
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("room_id = ? AND deleted_at IS NULL", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, Message{
			ID:        r.ID,
			RoomID:    r.RoomID,
			UserID:    r.UserID,
			Username:  r.User.Username,
			AvatarURL: r.User.AvatarURL,
			Body:      r.Body,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}

// Enabled reads the global chat toggle. A missing settings row means
// enabled.
func (s *Service) Enabled(ctx context.Context) (bool, error) {
	if v, err := s.cache.Get(ctx, cache.KeyChatEnabled); err == nil {
		return v == "1", nil
	}

	var settings models.ChatSettings
	err := s.db.WithContext(ctx).First(&settings, models.ChatSettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	s.cacheEnabled(ctx, settings.Enabled)
	return settings.Enabled, nil
}

// SetEnabled flips the toggle and tells connected clients
func (s *Service) SetEnabled(ctx context.Context, actorID string, enabled bool) (*StatusEvent, error) {
	now := s.now().UTC()
	settings := models.ChatSettings{
		ID:        models.ChatSettingsID,
		Enabled:   enabled,
		UpdatedAt: now,
	}
	if actorID != "" {
		settings.UpdatedBy = &actorID
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled", "updated_by", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		return nil, err
	}

	s.cacheEnabled(ctx, enabled)

	event := &StatusEvent{Enabled: enabled, UpdatedBy: actorID, UpdatedAt: now}
	if s.bus != nil {
		if err := pubsub.PublishJSON(ctx, s.bus, pubsub.TopicChatSystem, event); err != nil {
			logger.Log.Warn("Failed to publish chat status", zap.Error(err))
		}
	}

	logger.Log.Info("Chat toggled", zap.Bool("enabled", enabled), logger.WithUserID(actorID))
	return event, nil
}

func (s *Service) cacheEnabled(ctx context.Context, enabled bool) {
	v := "0"
	if enabled {
		v = "1"
	}
	if err := s.cache.SetEx(ctx, cache.KeyChatEnabled, v, 10*time.Minute); err != nil {
		logger.Log.Warn("Failed to cache chat toggle", zap.Error(err))
	}
}

func (s *Service) handleBatch(ctx context.Context, msg pubsub.Message) error {
	var batch Batch
	if err := json.Unmarshal(msg.Payload, &batch); err != nil {
		return err
	}

	buf := s.rooms.Get(batch.RoomID)
	replaysBefore := buf.Replays()
	added, removed := buf.Merge(batch)
	if buf.Replays() > replaysBefore {
		metrics.Get().ChatReplayedBatches.Inc()
	}

	logger.Log.Debug("Chat batch merged",
		logger.WithRoom(batch.RoomID),
		zap.Uint64("seq", batch.Seq),
		zap.Int("added", added),
		zap.Int("removed", removed))

	if s.out != nil {
		s.out.SendToRoom(batch.RoomID, "chat_batch", batch)
	}
	return nil
}

func (s *Service) handleStatus(ctx context.Context, msg pubsub.Message) error {
	var event StatusEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return err
	}
	if s.out != nil {
		s.out.SendToAll("chat_status", event)
	}
	return nil
}
