package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Compile-time check to ensure Hub implements Publisher.
var _ Publisher = (*Hub)(nil)

// DefaultSubscriberBuffer is used when NewHub is given a non-positive buffer.
const DefaultSubscriberBuffer = 16

type subscriber chan []byte

// Hub fans encoded events out to per-project subscribers.
// Sends never block: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uuid.UUID]map[subscriber]struct{}
	buffer  int
	dropped atomic.Int64
	closed  bool
	logger  *slog.Logger
}

// NewHub creates a Hub whose subscriber channels hold buffer messages.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[uuid.UUID]map[subscriber]struct{}),
		buffer: buffer,
		logger: logger.With("component", "event_hub"),
	}
}

// Subscribe registers a subscriber for projectID. The returned function
// unsubscribes and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe(projectID uuid.UUID) (<-chan []byte, func()) {
	ch := make(subscriber, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	set := h.subs[projectID]
	if set == nil {
		set = make(map[subscriber]struct{})
		h.subs[projectID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			set, ok := h.subs[projectID]
			if !ok {
				return
			}
			if _, live := set[ch]; !live {
				return
			}
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, projectID)
			}
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for projectID, set := range h.subs {
		for ch := range set {
			close(ch)
		}
		delete(h.subs, projectID)
	}
}

// Publish encodes event and delivers it to the subscribers of its project.
func (h *Hub) Publish(ctx context.Context, event *TaskEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode task event: %w", err)
	}
	h.Deliver(event.Payload.ProjectID, msg)
	return nil
}

// Deliver sends an already encoded message to the subscribers of projectID
// and returns how many received it.
func (h *Hub) Deliver(projectID uuid.UUID, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.subs[projectID] {
		select {
		case ch <- msg:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Debug("dropped event for slow subscriber", "project_id", projectID)
		}
	}
	return delivered
}

// SubscriberCount returns the number of live subscribers for projectID.
func (h *Hub) SubscriberCount(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[projectID])
}

// Dropped returns how many messages were discarded because a subscriber
// buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
