package eventbus

import "context"

// Event anything that names itself
type Event interface {
	EventName() string
}

// Publisher adapt a Bus to the Publish(ctx, event) shape used by services.
// E is the service's own event interface, e.g. Publisher[domain.Event].
type Publisher[E Event] struct {
	bus *Bus
}

// NewPublisher wrap bus
func NewPublisher[E Event](bus *Bus) *Publisher[E] {
	return &Publisher[E]{bus: bus}
}

// Publish emit event under its own name, subscriber failures never reach the caller
func (p *Publisher[E]) Publish(ctx context.Context, event E) error {
	p.bus.Emit(ctx, event.EventName(), event)
	return nil
}
