package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/eventbus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id, user string
	fail     bool

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.user }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) frames() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Frame, 0, len(c.sent))
	for _, b := range c.sent {
		f, err := domain.DecodeFrame(b)
		if err == nil {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.MessageCreated
}

func (n *recordingNotifier) NotifyOffline(ctx context.Context, event domain.MessageCreated) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestPresenceDirectory(t *testing.T) {
	p := NewPresenceDirectory()
	a1 := &fakeConn{id: "1", user: "a"}
	a2 := &fakeConn{id: "2", user: "a"}
	b1 := &fakeConn{id: "3", user: "b"}

	var wg sync.WaitGroup
	for _, c := range []*fakeConn{a1, a2, b1} {
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			p.Register(c)
		}(c)
	}
	wg.Wait()

	assert.Len(t, p.ConnectionsFor("a"), 2)
	assert.Equal(t, 2, p.OnlineUsers())
	assert.Equal(t, 3, p.Connections())

	p.Unregister("a", "1")
	p.Unregister("a", "unknown")
	p.Unregister("nobody", "1")
	assert.Len(t, p.ConnectionsFor("a"), 1)

	p.Unregister("a", "2")
	assert.False(t, p.IsOnline("a"))
	assert.True(t, p.IsOnline("b"))
	assert.Empty(t, p.ConnectionsFor("a"))
	assert.Equal(t, 1, p.OnlineUsers())
}

func newTestDispatcher(p *PresenceDirectory, n OfflineNotifier) *DeliveryDispatcher {
	d := NewDeliveryDispatcher(p, config.DeliveryConfig{Workers: 2, QueueSize: 16, Timeout: 50 * time.Millisecond}, n)
	d.Start()
	return d
}

func TestDeliveryDispatcher_PushToRecipientAndEcho(t *testing.T) {
	p := NewPresenceDirectory()
	b1 := &fakeConn{id: "b1", user: "b"}
	b2 := &fakeConn{id: "b2", user: "b"}
	aOrigin := &fakeConn{id: "a1", user: "a"}
	aOther := &fakeConn{id: "a2", user: "a"}
	for _, c := range []*fakeConn{b1, b2, aOrigin, aOther} {
		p.Register(c)
	}

	notifier := &recordingNotifier{}
	d := newTestDispatcher(p, notifier)
	bus := eventbus.New()
	d.Subscribe(bus)

	msg := domain.Message{ID: "m1", SenderID: "a", RecipientID: "b", Body: "hi"}
	bus.Emit(context.Background(), domain.EventMessageCreated, domain.MessageCreated{
		RecipientID:        "b",
		Message:            msg,
		OriginConnectionID: "a1",
	})
	d.Stop()

	for _, c := range []*fakeConn{b1, b2, aOther} {
		frames := c.frames()
		require.Len(t, frames, 1, c.id)
		assert.Equal(t, domain.FrameMessageCreated, frames[0].Type)
		assert.Contains(t, string(frames[0].Data), `"message_id":"m1"`)
	}
	assert.Empty(t, aOrigin.frames())
	assert.Equal(t, 0, notifier.count())
}

func TestDeliveryDispatcher_FailedWriteClosesConnection(t *testing.T) {
	p := NewPresenceDirectory()
	broken := &fakeConn{id: "b1", user: "b", fail: true}
	healthy := &fakeConn{id: "b2", user: "b"}
	p.Register(broken)
	p.Register(healthy)

	d := newTestDispatcher(p, nil)
	require.NoError(t, d.Enqueue(domain.MessageCreated{RecipientID: "b", Message: domain.Message{ID: "m1", SenderID: "a", RecipientID: "b"}}))
	d.Stop()

	assert.True(t, broken.isClosed())
	assert.Len(t, healthy.frames(), 1)
	assert.Len(t, p.ConnectionsFor("b"), 1)
}

func TestDeliveryDispatcher_OfflineRecipient(t *testing.T) {
	p := NewPresenceDirectory()
	notifier := &recordingNotifier{}
	d := newTestDispatcher(p, notifier)

	require.NoError(t, d.Enqueue(domain.MessageCreated{RecipientID: "b", Message: domain.Message{ID: "m1", SenderID: "a", RecipientID: "b"}}))
	d.Stop()

	assert.Equal(t, 1, notifier.count())
}

type blockingConn struct {
	fakeConn
	release chan struct{}
}

func (c *blockingConn) Send(data []byte) error {
	<-c.release
	return c.fakeConn.Send(data)
}

func TestDeliveryDispatcher_FullQueueDropsAfterTimeout(t *testing.T) {
	p := NewPresenceDirectory()
	slow := &blockingConn{fakeConn: fakeConn{id: "b1", user: "b"}, release: make(chan struct{})}
	p.Register(slow)

	d := NewDeliveryDispatcher(p, config.DeliveryConfig{Workers: 1, QueueSize: 1, Timeout: 20 * time.Millisecond}, nil)
	d.Start()

	event := domain.MessageCreated{RecipientID: "b", Message: domain.Message{ID: "m", SenderID: "a", RecipientID: "b"}}

	// first one parks the worker, second fills the queue
	require.NoError(t, d.Enqueue(event))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Enqueue(event))

	start := time.Now()
	err := d.Enqueue(event)
	assert.ErrorIs(t, err, ErrDispatcherBusy)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	close(slow.release)
	d.Stop()
	assert.Len(t, slow.frames(), 2)
}

func TestDeliveryDispatcher_IgnoresUnknownPayload(t *testing.T) {
	d := NewDeliveryDispatcher(NewPresenceDirectory(), config.DeliveryConfig{}, nil)
	assert.Error(t, d.Handle(context.Background(), "not an event"))
}
