// Package chat implements live-chat rooms: the per-room merge buffer that
// deduplicates and tombstones realtime batches, the batcher that coalesces
// sends and deletions onto the bus, and the service the HTTP layer calls.
package chat

import (
	"time"
)

// Message is one chat line as broadcast to clients
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Batch is what the batcher publishes for one room per flush
type Batch struct {
	RoomID   string    `json:"room_id"`
	Seq      uint64    `json:"seq"`
	Messages []Message `json:"messages"`
	Deleted  []string  `json:"deleted"`
	SentAt   time.Time `json:"sent_at"`
}

// Size is messages plus deletions
func (b Batch) Size() int {
	return len(b.Messages) + len(b.Deleted)
}

// before orders messages by (CreatedAt, ID) ascending
func before(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
