package topic

import (
	"context"
	"sync"
)

// BroadcastTopic is a fan-out, fire-and-forget ring buffer: publishing
// never blocks on subscribers, and a subscriber that falls behind the
// buffer's capacity observes a LaggedError and resumes from the oldest
// message still in the buffer. Ordering is per-publisher FIFO; across concurrent publishers it
// is undefined (spec.md §4.2).
type BroadcastTopic[T any] struct {
	mu       sync.Mutex
	cap      int
	slots    []slot[T]
	nextSeq  uint64
	wake     chan struct{} // closed and replaced on every publish
}

type slot[T any] struct {
	seq   uint64
	value T
	valid bool
}

func newBroadcastTopic[T any](capacity int) *BroadcastTopic[T] {
	return &BroadcastTopic[T]{
		cap:   capacity,
		slots: make([]slot[T], capacity),
		wake:  make(chan struct{}),
	}
}

// Publish appends value to the ring buffer and wakes any blocked
// subscribers. It never returns an error: broadcast topics drop, they
// never reject (only stream topics surface ErrBufferFull).
func (b *BroadcastTopic[T]) Publish(value T) {
	b.mu.Lock()
	seq := b.nextSeq
	b.nextSeq++
	b.slots[int(seq%uint64(b.cap))] = slot[T]{seq: seq, value: value, valid: true}
	oldWake := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()
	close(oldWake)
}

// BroadcastSubscription tracks one subscriber's read cursor into a topic.
type BroadcastSubscription[T any] struct {
	topic  *BroadcastTopic[T]
	cursor uint64 // next seq this subscriber wants to read
	inited bool
}

// Subscribe returns a subscription positioned at the current tail: it
// will only observe messages published after this call.
func (b *BroadcastTopic[T]) Subscribe() *BroadcastSubscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &BroadcastSubscription[T]{topic: b, cursor: b.nextSeq, inited: true}
}

// Recv blocks until a message is available, ctx is done, or the
// subscriber has lagged past the buffer and must skip forward. On lag it
// returns a *LaggedError and repositions the cursor at the oldest
// available message so the next call succeeds.
func (s *BroadcastSubscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s.topic.mu.Lock()
		if s.cursor < s.topic.nextSeq {
			oldest := uint64(0)
			if s.topic.nextSeq > uint64(s.topic.cap) {
				oldest = s.topic.nextSeq - uint64(s.topic.cap)
			}
			if s.cursor < oldest {
				skipped := oldest - s.cursor
				s.cursor = oldest
				s.topic.mu.Unlock()
				return zero, &LaggedError{Skipped: int(skipped)}
			}
			sl := s.topic.slots[int(s.cursor%uint64(s.topic.cap))]
			s.cursor++
			s.topic.mu.Unlock()
			if sl.valid {
				return sl.value, nil
			}
			continue
		}
		wake := s.topic.wake
		s.topic.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wake:
		}
	}
}

func (b *BroadcastTopic[T]) close() {}
