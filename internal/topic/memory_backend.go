package topic

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type msgState int

const (
	statePending msgState = iota
	stateInFlight
)

type msgEntry struct {
	id            string
	payload       []byte
	state         msgState
	deliveryCount int
	visibleAt     time.Time
}

type memStreamTopic struct {
	mu    sync.Mutex
	order *list.List // of *msgEntry, insertion order
	byID  map[string]*list.Element
}

// MemoryBackend is the default stream Backend: an ordered map per topic
// holding pending and in-flight segments, as specified in spec.md §4.2.
// It is the right choice for development and single-process deployments;
// MemoryBackend never survives process restart.
type MemoryBackend struct {
	mu       sync.Mutex
	topics   map[string]*memStreamTopic
	capacity int
	seq      uint64
}

// NewMemoryBackend constructs a MemoryBackend bounding each topic to
// capacity unacknowledged (pending or in-flight) messages before Publish
// returns ErrBufferFull.
func NewMemoryBackend(capacity int) *MemoryBackend {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	return &MemoryBackend{topics: make(map[string]*memStreamTopic), capacity: capacity}
}

func (m *MemoryBackend) topicFor(name string) *memStreamTopic {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[name]
	if !ok {
		t = &memStreamTopic{order: list.New(), byID: make(map[string]*list.Element)}
		m.topics[name] = t
	}
	return t
}

func (m *MemoryBackend) Publish(_ context.Context, topic string, payload []byte) (string, error) {
	t := m.topicFor(topic)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.order.Len() >= m.capacity {
		return "", ErrBufferFull
	}
	id := fmt.Sprintf("%d-%d", time.Now().UnixNano(), atomic.AddUint64(&m.seq, 1))
	entry := &msgEntry{id: id, payload: payload, state: statePending}
	el := t.order.PushBack(entry)
	t.byID[id] = el
	return id, nil
}

func (m *MemoryBackend) Read(_ context.Context, topic string, _ string, max int, visibility time.Duration) ([]StreamMessage, error) {
	t := m.topicFor(topic)
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var out []StreamMessage
	for el := t.order.Front(); el != nil && len(out) < max; el = el.Next() {
		entry := el.Value.(*msgEntry)
		eligible := entry.state == statePending || (entry.state == stateInFlight && !now.Before(entry.visibleAt))
		if !eligible {
			continue
		}
		entry.state = stateInFlight
		entry.deliveryCount++
		entry.visibleAt = now.Add(visibility)
		out = append(out, StreamMessage{ID: entry.id, Payload: entry.payload, DeliveryCount: entry.deliveryCount})
	}
	return out, nil
}

func (m *MemoryBackend) Ack(_ context.Context, topic string, id string) error {
	t := m.topicFor(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.byID[id]; ok {
		t.order.Remove(el)
		delete(t.byID, id)
	}
	return nil
}

func (m *MemoryBackend) Stats(_ context.Context, topic string) (StreamStats, error) {
	t := m.topicFor(topic)
	t.mu.Lock()
	defer t.mu.Unlock()
	var s StreamStats
	for el := t.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*msgEntry)
		if entry.state == statePending {
			s.Pending++
		} else {
			s.InFlight++
		}
	}
	return s, nil
}
