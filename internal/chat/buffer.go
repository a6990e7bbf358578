package chat

import (
	"sort"
	"sync"
)

// DefaultCapacity is the number of messages a room buffer keeps
const DefaultCapacity = 200

// Buffer is a room's recent history built from merged batches.
// It is safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	capacity int

	msgs  []Message // sorted by (CreatedAt, ID)
	index map[string]struct{}

	tombstones map[string]struct{}
	tombOrder  []string // FIFO eviction order

	lastSeq uint64
	replays int
}

// NewBuffer creates a buffer holding at most capacity messages
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity:   capacity,
		index:      make(map[string]struct{}),
		tombstones: make(map[string]struct{}),
	}
}

// Merge applies a batch: deletions first, then new messages.
// added counts batch messages present after the merge; removed counts
// messages dropped by this batch's deletions.
func (b *Buffer) Merge(batch Batch) (added, removed int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if batch.Seq != 0 {
		if batch.Seq <= b.lastSeq {
			b.replays++
		} else {
			b.lastSeq = batch.Seq
		}
	}

	for _, id := range batch.Deleted {
		b.tombstone(id)
		if _, ok := b.index[id]; ok {
			b.remove(id)
			removed++
		}
	}

	inserted := make([]string, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		if _, dead := b.tombstones[m.ID]; dead {
			continue
		}
		if _, dup := b.index[m.ID]; dup {
			continue
		}
		b.insert(m)
		inserted = append(inserted, m.ID)
	}

	b.trim()

	for _, id := range inserted {
		if _, ok := b.index[id]; ok {
			added++
		}
	}
	return added, removed
}

func (b *Buffer) insert(m Message) {
	i := sort.Search(len(b.msgs), func(i int) bool {
		return before(m, b.msgs[i])
	})
	b.msgs = append(b.msgs, Message{})
	copy(b.msgs[i+1:], b.msgs[i:])
	b.msgs[i] = m
	b.index[m.ID] = struct{}{}
}

func (b *Buffer) remove(id string) {
	for i := range b.msgs {
		if b.msgs[i].ID == id {
			b.msgs = append(b.msgs[:i], b.msgs[i+1:]...)
			break
		}
	}
	delete(b.index, id)
}

// trim keeps the newest capacity messages
func (b *Buffer) trim() {
	over := len(b.msgs) - b.capacity
	if over <= 0 {
		return
	}
	for _, m := range b.msgs[:over] {
		delete(b.index, m.ID)
	}
	b.msgs = append([]Message(nil), b.msgs[over:]...)
}

func (b *Buffer) tombstone(id string) {
	if _, ok := b.tombstones[id]; ok {
		return
	}
	b.tombstones[id] = struct{}{}
	b.tombOrder = append(b.tombOrder, id)

	limit := 4 * b.capacity
	for len(b.tombOrder) > limit {
		delete(b.tombstones, b.tombOrder[0])
		b.tombOrder = b.tombOrder[1:]
	}
}

// Snapshot returns a copy of the buffered messages, oldest first
func (b *Buffer) Snapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Latest returns up to limit of the newest messages, oldest first
func (b *Buffer) Latest(limit int) []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	start := 0
	if limit > 0 && len(b.msgs) > limit {
		start = len(b.msgs) - limit
	}
	out := make([]Message, len(b.msgs)-start)
	copy(out, b.msgs[start:])
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.msgs)
}

func (b *Buffer) Contains(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.index[id]
	return ok
}

// IsDeleted reports whether id is tombstoned
func (b *Buffer) IsDeleted(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tombstones[id]
	return ok
}

// Replays is how many merged batches carried an already-seen Seq
func (b *Buffer) Replays() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.replays
}

// LastSeq is the highest Seq merged so far
func (b *Buffer) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeq
}

// Rooms holds one Buffer per room, created on first use
type Rooms struct {
	mu       sync.Mutex
	capacity int
	rooms    map[string]*Buffer
	hydrated map[string]bool
}

func NewRooms(capacity int) *Rooms {
	return &Rooms{
		capacity: capacity,
		rooms:    make(map[string]*Buffer),
		hydrated: make(map[string]bool),
	}
}

// Hydrated reports whether stored history has been loaded into the room
func (r *Rooms) Hydrated(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hydrated[roomID]
}

// MarkHydrated records that stored history is in the room's buffer
func (r *Rooms) MarkHydrated(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hydrated[roomID] = true
}

// Get returns the room's buffer, creating it if needed
func (r *Rooms) Get(roomID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.rooms[roomID]
	if !ok {
		buf = NewBuffer(r.capacity)
		r.rooms[roomID] = buf
	}
	return buf
}

// Lookup returns the buffer only if the room is already warm
func (r *Rooms) Lookup(roomID string) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.rooms[roomID]
	return buf, ok
}
