package feed

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mborders/logmatic"
	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/logging"
)

const subscriberBuffer = 16

// Hub fans accepted badge events out to live subscribers. A subscriber that
// falls behind misses events rather than blocking publishers.
type Hub struct {
	mu          deadlock.RWMutex
	subscribers map[string]chan []byte
	log         *logmatic.Logger
}

func NewHub(log *logmatic.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]chan []byte),
		log:         logging.Or(log),
	}
}

// Subscribe registers a new subscriber. cancel must be called once the
// subscriber is gone; it closes the channel.
func (h *Hub) Subscribe() (id string, events <-chan []byte, cancel func()) {
	id = uuid.NewString()
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	h.log.Debug("feed subscriber %s joined", id)
	return id, ch, func() { h.unsubscribe(id) }
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	delete(h.subscribers, id)
	h.mu.Unlock()
	if ok {
		close(ch)
		h.log.Debug("feed subscriber %s left", id)
	}
}

func (h *Hub) Publish(event domain.FeedEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Warn("feed event encode failed: %v", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subscribers {
		select {
		case ch <- data:
		default:
			h.log.Debug("feed subscriber %s is behind; dropping event", id)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
