package events

import (
	"errors"
	"sync"
	"time"

	"github.com/cuemby/riskfeed/pkg/log"
	"github.com/cuemby/riskfeed/pkg/metrics"
	"github.com/cuemby/riskfeed/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventType names a push event stream
type EventType string

const (
	EventMetrics EventType = "metrics"
	EventAlert   EventType = "alert"
)

var (
	// ErrSubscriptionClosed is returned when delivering to a disconnected subscriber
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrBufferFull is returned when a subscriber has no room for an event batch
	ErrBufferFull = errors.New("subscriber buffer full")
	// ErrHubClosed is returned by Subscribe after Close
	ErrHubClosed = errors.New("hub closed")
)

// DefaultBufferSize is the per-subscriber event buffer
const DefaultBufferSize = 16

// Event is a single push event. Data is a types.Metrics for metrics events
// and a *types.Alert for alert events.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      any
}

// SnapshotFunc computes a fresh metrics snapshot
type SnapshotFunc func() (types.Metrics, error)

// Subscription is one connected push client
type Subscription struct {
	id     string
	events chan *Event
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSubscription(bufferSize int) *Subscription {
	return &Subscription{
		id:     uuid.NewString(),
		events: make(chan *Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber id
func (s *Subscription) ID() string {
	return s.id
}

// Events returns the channel events are delivered on. It is closed when the
// subscription closes.
func (s *Subscription) Events() <-chan *Event {
	return s.events
}

// Done is closed when the subscription closes
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close marks the subscription as disconnected. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.events)
}

// deliver queues evs without blocking. Either all events fit in the buffer
// or none are queued.
func (s *Subscription) deliver(evs ...*Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSubscriptionClosed
	}
	// Only deliver sends on this channel and it holds s.mu, so free space
	// can only grow between this check and the sends below.
	if cap(s.events)-len(s.events) < len(evs) {
		return ErrBufferFull
	}
	for _, ev := range evs {
		s.events <- ev
	}
	return nil
}

// DeliveryReport summarises one publish
type DeliveryReport struct {
	Delivered int
	Dropped   int
	Removed   int
}

// Hub tracks connected subscribers and fans out alert and metrics events
type Hub struct {
	subscribers map[*Subscription]struct{}
	mu          sync.RWMutex
	closed      bool

	snapshot   SnapshotFunc
	bufferSize int
	logger     zerolog.Logger
}

// Option configures a Hub
type Option func(*Hub)

// WithBufferSize sets the per-subscriber buffer. Values below 2 are raised to
// 2 so an alert/metrics pair always fits an empty buffer.
func WithBufferSize(size int) Option {
	return func(h *Hub) {
		if size < 2 {
			size = 2
		}
		h.bufferSize = size
	}
}

// NewHub creates a hub that takes metrics snapshots from snapshot
func NewHub(snapshot SnapshotFunc, opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[*Subscription]struct{}),
		snapshot:    snapshot,
		bufferSize:  DefaultBufferSize,
		logger:      log.WithComponent("hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber. Its first event is a metrics event
// carrying a freshly computed snapshot.
func (h *Hub) Subscribe() (*Subscription, error) {
	m, err := h.snapshot()
	if err != nil {
		return nil, err
	}

	sub := newSubscription(h.bufferSize)
	if err := sub.deliver(newEvent(EventMetrics, m)); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.Close()
		return nil, ErrHubClosed
	}
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(count))
	metrics.EventsDelivered.WithLabelValues(string(EventMetrics)).Inc()
	h.logger.Debug().Str("subscriber_id", sub.id).Int("subscribers", count).Msg("Subscriber added")
	return sub, nil
}

// Unsubscribe removes sub and closes it. Nil or unknown subscriptions are ignored.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.remove(sub)
	sub.Close()
}

// PublishAlert computes a fresh snapshot and sends every subscriber an alert
// event followed by a metrics event. Closed subscribers are removed; a
// subscriber without buffer room misses this pair but stays registered.
func (h *Hub) PublishAlert(alert *types.Alert) (DeliveryReport, error) {
	var report DeliveryReport

	m, err := h.snapshot()
	if err != nil {
		return report, err
	}

	alertEvent := newEvent(EventAlert, alert)
	metricsEvent := newEvent(EventMetrics, m)

	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	var dead []*Subscription
	for _, sub := range subs {
		err := sub.deliver(alertEvent, metricsEvent)
		switch {
		case err == nil:
			report.Delivered++
		case errors.Is(err, ErrBufferFull):
			report.Dropped++
			metrics.EventsDropped.WithLabelValues("buffer_full").Add(2)
			h.logger.Warn().Str("subscriber_id", sub.id).Str("alert_id", alert.ID).Msg("Subscriber too slow, events dropped")
		default:
			dead = append(dead, sub)
		}
	}

	for _, sub := range dead {
		h.remove(sub)
		metrics.EventsDropped.WithLabelValues("closed").Add(2)
		subLog := log.WithSubscriberID(sub.id)
		subLog.Debug().Str("component", "hub").Msg("Removed closed subscriber")
	}
	report.Removed = len(dead)

	metrics.EventsDelivered.WithLabelValues(string(EventAlert)).Add(float64(report.Delivered))
	metrics.EventsDelivered.WithLabelValues(string(EventMetrics)).Add(float64(report.Delivered))
	return report, nil
}

// SubscriberCount returns the number of active subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for sub := range subs {
		sub.Close()
	}
	metrics.Subscribers.Set(0)
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		metrics.Subscribers.Set(float64(count))
	}
}

func newEvent(t EventType, data any) *Event {
	return &Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
