// Package eventbus in-process publish/subscribe keyed by event name.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// Handler subscriber callback
type Handler func(ctx context.Context, payload interface{}) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus synchronous fan-out, handlers run in subscription order on the Emit goroutine
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// New create an empty Bus
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe register handler for name, the returned func removes it
func (b *Bus) Subscribe(name string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[name]
	for i, s := range subs {
		if s.id == id {
			// copy so snapshots taken by a running Emit stay intact
			next := make([]subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, name)
			} else {
				b.subs[name] = next
			}
			return
		}
	}
}

// Emit invoke every current subscriber of name. Errors and panics are logged, never returned.
func (b *Bus) Emit(ctx context.Context, name string, payload interface{}) {
	b.mu.RLock()
	snapshot := b.subs[name]
	b.mu.RUnlock()

	for _, s := range snapshot {
		b.call(ctx, name, s.handler, payload)
	}
}

// Subscribers number of handlers for name
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}

func (b *Bus) call(ctx context.Context, name string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("eventbus handler panic",
				zap.String("event", name),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	if err := h(ctx, payload); err != nil {
		logger.Log.Warn("eventbus handler failed", zap.String("event", name), zap.Error(err))
	}
}
