package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Event types
const (
	EventPredictionUpdated = "prediction_updated"
	EventDashboardUpdated  = "dashboard_updated"
	EventUrgentAlert       = "urgent_alert"
)

const subscriberBuffer = 16

// Event is one push message. Delivery is at most once with no replay.
type Event struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	At      time.Time       `json:"at"`
}

// NewEvent encodes payload into an event
func NewEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw, At: time.Now().UTC()}, nil
}

func ProductTopic(storeID, productID string) string { return "product:" + storeID + ":" + productID }

func DashboardTopic(storeID string) string { return "dashboard:" + storeID }

func AlertsTopic(storeID string) string { return "alerts:" + storeID }

// Publisher fires events at whoever is subscribed right now
type Publisher interface {
	Publish(ctx context.Context, topic string, evt Event) error
}

// Broker is a publisher that also hands out subscriptions
type Broker interface {
	Publisher
	Subscribe(topic string) (<-chan Event, func())
}

// Hub is the in-process broker. Slow subscribers lose events instead of blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan Event
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan Event)}
}

func (h *Hub) Subscribe(topic string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	if _, ok := h.subs[topic]; !ok {
		h.subs[topic] = make(map[int]chan Event)
	}
	h.subs[topic][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[topic], id)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (h *Hub) Publish(_ context.Context, topic string, evt Event) error {
	evt.Topic = topic

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[topic] {
		select {
		case ch <- evt:
		default:
			log.Warn().Str("topic", topic).Str("type", evt.Type).Msg("dropping event for slow subscriber")
		}
	}
	return nil
}

// Subscribers counts live subscriptions on a topic
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}
