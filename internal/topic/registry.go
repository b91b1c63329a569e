package topic

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// Kind distinguishes the two topic flavors.
type Kind int

const (
	KindBroadcast Kind = iota
	KindStream
)

// DefaultChannelCapacity is the size of the ring buffer a broadcast
// topic shares among its subscribers, and the per-topic message bound
// the memory stream backend falls back to.
const DefaultChannelCapacity = 1024

type entry struct {
	kind    Kind
	typ     reflect.Type
	topic   any // *BroadcastTopic[T] or StreamTopic[T], type-erased
}

// Registry is a concurrent map keyed by (name, type), mirroring the
// systems-language "typed channel identified by name" capability: a
// duplicate name registered under a different payload type fails with
// ErrTypeMismatch rather than silently aliasing two unrelated streams.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	backend Backend
}

// NewRegistry creates an empty registry backed by the given Backend
// (memory or redis, selected by the topic backend setting, which is
// configured separately from the cache backend).
func NewRegistry(backend Backend) *Registry {
	return &Registry{entries: make(map[string]*entry), backend: backend}
}

// RegisterBroadcast registers (or fetches) a broadcast topic by name.
func RegisterBroadcast[T any](r *Registry, name string, capacity int) (*BroadcastTopic[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if e, ok := r.entries[name]; ok {
		if e.kind != KindBroadcast || e.typ != typ {
			return nil, fmt.Errorf("%w: topic %q", ErrTypeMismatch, name)
		}
		return e.topic.(*BroadcastTopic[T]), nil
	}
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	bt := newBroadcastTopic[T](capacity)
	r.entries[name] = &entry{kind: KindBroadcast, typ: typ, topic: bt}
	return bt, nil
}

// RegisterStream registers (or fetches) a stream topic by name, backed by
// the registry's configured Backend.
func RegisterStream[T any](r *Registry, name string, visibilityTimeoutSeconds int) (*StreamTopic[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	typ := reflect.TypeOf((*T)(nil)).Elem()
	if e, ok := r.entries[name]; ok {
		if e.kind != KindStream || e.typ != typ {
			return nil, fmt.Errorf("%w: topic %q", ErrTypeMismatch, name)
		}
		return e.topic.(*StreamTopic[T]), nil
	}
	st := newStreamTopic[T](name, r.backend, visibilityTimeoutSeconds)
	r.entries[name] = &entry{kind: KindStream, typ: typ, topic: st}
	return st, nil
}

// Close calls the close hook of every registered topic that has one.
// Only broadcast topics have a hook, and it is a no-op, so Close
// releases no backend resources.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if c, ok := e.topic.(interface{ close() }); ok {
			c.close()
		}
	}
}
