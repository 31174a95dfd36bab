package hub

import (
	"context"
	"sync"

	"github.com/atikulmunna/logagent/internal/model"
	"go.uber.org/zap"
)

const subscriberBuffer = 256

// Hub receives stream updates from the collector and broadcasts them to all
// subscribers (websocket clients, the aggregator, the detector).
type Hub struct {
	input       <-chan model.Update
	logger      *zap.Logger
	mu          sync.RWMutex
	subscribers map[chan model.Update]struct{}
	dropped     int64
}

// New creates a Hub that reads from the input channel.
func New(input <-chan model.Update, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		input:       input,
		logger:      logger,
		subscribers: make(map[chan model.Update]struct{}),
	}
}

// Subscribe returns a buffered channel that will receive every update.
// Call Unsubscribe when done to release it.
func (h *Hub) Subscribe() <-chan model.Update {
	ch := make(chan model.Update, subscriberBuffer)
	h.mu.Lock()
	if h.subscribers == nil {
		// Hub already stopped.
		close(ch)
	} else {
		h.subscribers[ch] = struct{}{}
	}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (h *Hub) Unsubscribe(sub <-chan model.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		if ch == sub {
			delete(h.subscribers, ch)
			close(ch)
			return
		}
	}
}

// Subscribers reports the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Dropped returns the total number of updates dropped due to slow consumers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Start begins reading from the input channel and broadcasting.
// Blocks until the context is cancelled or the input channel is closed.
func (h *Hub) Start(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-h.input:
			if !ok {
				return
			}
			h.broadcast(u)
		}
	}
}

// broadcast sends an update to all subscribers.
// If a subscriber's channel is full, the update is dropped for that subscriber.
func (h *Hub) broadcast(u model.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers {
		select {
		case ch <- u:
		default:
			h.dropped++
			h.logger.Warn("hub: dropped update for slow consumer",
				zap.String("stream", string(u.Stream)),
				zap.Int64("total_dropped", h.dropped),
			)
		}
	}
}

// closeAll closes all subscriber channels.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}
