package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const defaultSubscriberBuffer = 16

// MemoryBus fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event rather than blocking the publisher.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[int64]map[*memorySubscription]struct{}
	buffer int
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:   make(map[int64]map[*memorySubscription]struct{}),
		buffer: defaultSubscriberBuffer,
	}
}

func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.subs[event.GameID] {
		select {
		case sub.ch <- event:
		default:
			log.Ctx(ctx).Warn().
				Str("component", "memory_bus").
				Int64("game_id", event.GameID).
				Str("event_type", string(event.Type)).
				Msg("Dropping event for slow subscriber")
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, gameID int64) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}

	sub := &memorySubscription{bus: b, gameID: gameID, ch: make(chan Event, b.buffer)}
	if b.subs[gameID] == nil {
		b.subs[gameID] = make(map[*memorySubscription]struct{})
	}
	b.subs[gameID][sub] = struct{}{}
	return sub, nil
}

// Close ends every open subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.subs {
		for sub := range subs {
			sub.closeOnce.Do(func() { close(sub.ch) })
		}
	}
	b.subs = map[int64]map[*memorySubscription]struct{}{}
	return nil
}

func (b *MemoryBus) subscriberCount(gameID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[gameID])
}

type memorySubscription struct {
	bus       *MemoryBus
	gameID    int64
	ch        chan Event
	closeOnce sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if subs, ok := s.bus.subs[s.gameID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.bus.subs, s.gameID)
		}
	}
	s.closeOnce.Do(func() { close(s.ch) })
	return nil
}
