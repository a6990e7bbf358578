package chat

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
)

// BatcherConfig controls flush timing
type BatcherConfig struct {
	FlushInterval time.Duration
	MaxBatchSize  int
}

// DefaultBatcherConfig flushes every 250ms or at 50 pending items
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		FlushInterval: 250 * time.Millisecond,
		MaxBatchSize:  50,
	}
}

type pendingRoom struct {
	messages []Message
	deleted  []string
}

func (p *pendingRoom) size() int {
	return len(p.messages) + len(p.deleted)
}

// Batcher coalesces sends and deletions per room and publishes them as
// Batches on pubsub.TopicChatBatches. Only the loop goroutine publishes,
// so each room's batches are published in Seq order. Delivery order is up
// to the bus; Buffer.Merge accepts batches in any order.
type Batcher struct {
	pub pubsub.Publisher
	cfg BatcherConfig
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingRoom
	seqs    map[string]uint64

	started bool
	stopped bool

	kick chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewBatcher creates a batcher publishing to pub
func NewBatcher(pub pubsub.Publisher, cfg BatcherConfig) *Batcher {
	def := DefaultBatcherConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = def.MaxBatchSize
	}
	return &Batcher{
		pub:     pub,
		cfg:     cfg,
		now:     time.Now,
		pending: make(map[string]*pendingRoom),
		seqs:    make(map[string]uint64),
		kick:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// AddMessage queues a new message for its room
func (b *Batcher) AddMessage(m Message) {
	b.add(m.RoomID, func(p *pendingRoom) { p.messages = append(p.messages, m) })
}

// AddDeletion queues a deletion for a room
func (b *Batcher) AddDeletion(roomID, messageID string) {
	b.add(roomID, func(p *pendingRoom) { p.deleted = append(p.deleted, messageID) })
}

func (b *Batcher) add(roomID string, apply func(*pendingRoom)) {
	b.mu.Lock()
	p, ok := b.pending[roomID]
	if !ok {
		p = &pendingRoom{}
		b.pending[roomID] = p
	}
	apply(p)
	full := p.size() >= b.cfg.MaxBatchSize
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Start runs the flush loop in a goroutine. Start after Stop is a no-op.
func (b *Batcher) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.stopped {
		return
	}
	b.started = true
	go b.run()
}

// Stop flushes what is pending and waits for the loop to exit.
// Calling Stop without Start still flushes.
func (b *Batcher) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	started := b.started
	b.mu.Unlock()

	if !started {
		b.flush(context.Background(), "shutdown", false)
		return
	}
	close(b.stop)
	<-b.done
}

func (b *Batcher) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-ticker.C:
			b.flush(ctx, "interval", false)
		case <-b.kick:
			b.flush(ctx, "size", true)
		case <-b.stop:
			b.flush(ctx, "shutdown", false)
			return
		}
	}
}

// flush publishes pending rooms. With onlyFull set, rooms below
// MaxBatchSize are left for the next tick.
func (b *Batcher) flush(ctx context.Context, reason string, onlyFull bool) {
	b.mu.Lock()
	batches := make([]Batch, 0, len(b.pending))
	sentAt := b.now().UTC()
	for roomID, p := range b.pending {
		if p.size() == 0 || (onlyFull && p.size() < b.cfg.MaxBatchSize) {
			continue
		}
		b.seqs[roomID]++
		batches = append(batches, Batch{
			RoomID:   roomID,
			Seq:      b.seqs[roomID],
			Messages: p.messages,
			Deleted:  p.deleted,
			SentAt:   sentAt,
		})
		delete(b.pending, roomID)
	}
	b.mu.Unlock()
	if len(batches) == 0 {
		return
	}

	ctx, span := telemetry.GetBusinessEvents().TraceChatFlush(ctx, reason, len(batches))
	defer span.End()

	m := metrics.Get()
	for _, batch := range batches {
		if err := pubsub.PublishJSON(ctx, b.pub, pubsub.TopicChatBatches, batch); err != nil {
			logger.Log.Error("Failed to publish chat batch",
				logger.WithRoom(batch.RoomID),
				zap.Uint64("seq", batch.Seq),
				zap.Error(err))
			span.RecordError(err)
			continue
		}
		m.ChatBatchesPublished.WithLabelValues(reason).Inc()
		m.ChatMessagesPerBatch.Observe(float64(batch.Size()))
	}
}

// Pending is the number of queued items for a room
func (b *Batcher) Pending(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pending[roomID]; ok {
		return p.size()
	}
	return 0
}
