// ============================================================================
// backend/internal/syncbus/bus.go
// In-process publish/subscribe bus for grade change notifications.
// ============================================================================

package syncbus

import (
	"sync"

	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
)

// Handler receives one ChangeNotification per matching publish. Handlers that
// panic are isolated: the panic is recovered and logged, and the remaining
// handlers in the same publish still run.
type Handler func(note shared.ChangeNotification)

// Bus decouples producers of "grade data changed" from consumers that refresh
// their derived views. Channels are plain strings matched exactly; there is
// no wildcard or hierarchy.
//
// Bus is an explicit instance rather than package-level state so tests can
// use isolated registries. The registry is shared by multiple goroutines
// (gateway handlers publish, the change-feed source publishes, views
// subscribe and unsubscribe), so it is guarded by a mutex: once an
// Unsubscribe returns, the handler will not run in any publish that starts
// afterwards.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	log    *zap.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewBus creates an empty bus. A nil logger falls back to zap.NewNop.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		subs: make(map[string][]subscription),
		log:  log,
	}
}

// Subscribe registers handler on channel and returns an unsubscribe function
// that removes exactly this registration. Calling the returned function more
// than once is a no-op. Handlers persist until unsubscribed; they are not
// single-shot.
func (b *Bus) Subscribe(channel string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(channel, id)
		})
	}
}

func (b *Bus) remove(channel string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[channel]
	for i := range subs {
		if subs[i].id == id {
			b.subs[channel] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[channel]) == 0 {
		delete(b.subs, channel)
	}
}

// Publish synchronously invokes every handler currently subscribed to
// channel, in registration order. A panicking handler is logged and skipped;
// it never prevents the remaining handlers from running and never propagates
// to the publisher.
func (b *Bus) Publish(channel string, note shared.ChangeNotification) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[channel]))
	copy(subs, b.subs[channel])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.invoke(channel, sub, note)
	}
}

// Fanout publishes the same notification on every listed channel.
func (b *Bus) Fanout(channels []string, note shared.ChangeNotification) {
	for _, ch := range channels {
		b.Publish(ch, note)
	}
}

func (b *Bus) invoke(channel string, sub subscription, note shared.ChangeNotification) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("sync bus handler fault",
				zap.String("channel", channel),
				zap.Uint64("subscription_id", sub.id),
				zap.Any("panic", r),
			)
		}
	}()
	sub.handler(note)
}

// SubscriberCount reports the number of live subscriptions on channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

// Reset drops every subscription. Intended for test teardown.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}
