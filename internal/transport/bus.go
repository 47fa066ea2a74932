package transport

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/simbridge/internal/monitoring"
	"github.com/banshee-data/simbridge/internal/msgs"
)

var (
	// ErrUnknownTopic is returned when publishing to a topic nobody advertised.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrQoSMismatch is returned when a topic is advertised twice with
	// different profiles.
	ErrQoSMismatch = errors.New("topic already advertised with a different QoS")
	// ErrBusClosed is returned by Publish and Advertise after Close.
	ErrBusClosed = errors.New("bus closed")
)

// AllTopics subscribes to every topic.
const AllTopics = ""

// Queue depths for subscriptions whose depth is not set by a topic QoS.
const (
	DefaultDepth  = 10
	WildcardDepth = 256
)

// TopicStats are per-topic counters.
type TopicStats struct {
	QoS         QoS    `json:"qos"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
	Subscribers int    `json:"subscribers"`
}

type topic struct {
	qos       QoS
	published uint64
	dropped   uint64
	// last holds the most recent envelope for transient-local topics so late
	// subscribers receive it.
	last *Envelope
}

type subscription struct {
	topic string
	ch    chan Envelope
}

// Bus is an in-process topic bus. Publish serialises the message before
// returning, so publishers may reuse their message values.
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topic
	subs   map[string]*subscription
	closed bool
	logf   func(format string, v ...interface{})
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{
		topics: make(map[string]*topic),
		subs:   make(map[string]*subscription),
		logf:   monitoring.Prefixed("Bus"),
	}
}

// Advertise registers a topic. Advertising an existing topic with the same
// QoS is a no-op.
func (b *Bus) Advertise(name string, qos QoS) error {
	if name == "" {
		return fmt.Errorf("advertise: empty topic name")
	}
	if qos.Depth < 1 {
		return fmt.Errorf("advertise %s: depth must be at least 1, got %d", name, qos.Depth)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if t, ok := b.topics[name]; ok {
		if t.qos != qos {
			return fmt.Errorf("advertise %s as %s: %w (%s)", name, qos, ErrQoSMismatch, t.qos)
		}
		return nil
	}
	b.topics[name] = &topic{qos: qos}
	b.logf("advertised %s (%s)", name, qos)
	return nil
}

// Subscribe opens a queue on topic, or on every topic for AllTopics. The
// queue depth is the topic's QoS depth when it has been advertised. The
// returned id is passed to Unsubscribe; the channel is closed by Unsubscribe
// or Close.
func (b *Bus) Subscribe(name string) (string, <-chan Envelope) {
	depth := DefaultDepth
	if name == AllTopics {
		depth = WildcardDepth
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var latched *Envelope
	if t, ok := b.topics[name]; ok {
		depth = t.qos.Depth
		if t.qos.Durability == TransientLocal {
			latched = t.last
		}
	}

	id := uuid.NewString()
	ch := make(chan Envelope, depth)
	if b.closed {
		close(ch)
		return id, ch
	}
	if latched != nil {
		ch <- *latched
	}
	b.subs[id] = &subscription{topic: name, ch: ch}
	return id, ch
}

// Unsubscribe closes and removes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subs[id]; ok {
		close(s.ch)
		delete(b.subs, id)
	}
}

// Publish serialises msg and delivers it to the topic's subscribers without
// blocking. When a queue is full a best-effort topic drops the new message
// and a reliable topic drops the oldest queued one.
func (b *Bus) Publish(name string, msg msgs.Message) error {
	env, err := NewEnvelope(name, msg)
	if err != nil {
		return err
	}
	return b.PublishEnvelope(env)
}

// PublishEnvelope delivers an already serialised message.
func (b *Bus) PublishEnvelope(env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	t, ok := b.topics[env.Topic]
	if !ok {
		return fmt.Errorf("publish %q: %w", env.Topic, ErrUnknownTopic)
	}
	t.published++
	if t.qos.Durability == TransientLocal {
		latched := env
		t.last = &latched
	}

	for _, s := range b.subs {
		if s.topic != env.Topic && s.topic != AllTopics {
			continue
		}
		if !deliver(s.ch, env, t.qos.Reliability == Reliable && s.topic != AllTopics) {
			t.dropped++
		}
	}
	return nil
}

// deliver enqueues env without blocking. With keepLast set, a full queue
// loses its oldest entry instead of env. Reports whether nothing was lost.
func deliver(ch chan Envelope, env Envelope, keepLast bool) bool {
	select {
	case ch <- env:
		return true
	default:
	}
	if !keepLast {
		return false
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- env:
	default:
	}
	return false
}

// Topics returns the advertised topic names, sorted.
func (b *Bus) Topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.topics))
	for name := range b.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot of per-topic counters.
func (b *Bus) Stats() map[string]TopicStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]TopicStats, len(b.topics))
	for name, t := range b.topics {
		out[name] = TopicStats{QoS: t.qos, Published: t.published, Dropped: t.dropped}
	}
	for _, s := range b.subs {
		if st, ok := out[s.topic]; ok {
			st.Subscribers++
			out[s.topic] = st
		}
	}
	return out
}

// Close closes every subscription. Later publishes fail with ErrBusClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subs {
		close(s.ch)
		delete(b.subs, id)
	}
	return nil
}
