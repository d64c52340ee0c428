package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/config"
	"direct_message_service/pkg/eventbus"
	"direct_message_service/pkg/logger"

	"go.uber.org/zap"
)

// ErrDispatcherBusy queue stayed full for the whole enqueue timeout
var ErrDispatcherBusy = errors.New("delivery queue full")

// OfflineNotifier hook for recipients without a live connection
type OfflineNotifier interface {
	NotifyOffline(ctx context.Context, event domain.MessageCreated) error
}

// DeliveryDispatcher pushes MessageCreated to live connections through a bounded worker pool,
// the bus handler only enqueues
type DeliveryDispatcher struct {
	presence *PresenceDirectory
	cfg      config.DeliveryConfig
	notifier OfflineNotifier

	queue chan domain.MessageCreated
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDeliveryDispatcher create DeliveryDispatcher, notifier may be nil
func NewDeliveryDispatcher(presence *PresenceDirectory, cfg config.DeliveryConfig, notifier OfflineNotifier) *DeliveryDispatcher {
	cfg = cfg.WithDefaults()
	return &DeliveryDispatcher{
		presence: presence,
		cfg:      cfg,
		notifier: notifier,
		queue:    make(chan domain.MessageCreated, cfg.QueueSize),
		stop:     make(chan struct{}),
	}
}

// Start launch the workers
func (d *DeliveryDispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	logger.Log.Info("delivery dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
	)
}

// Stop stop the workers after draining what is already queued
func (d *DeliveryDispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
		d.wg.Wait()
	})
}

// Subscribe register the dispatcher on bus
func (d *DeliveryDispatcher) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	return bus.Subscribe(domain.EventMessageCreated, d.Handle)
}

// Handle eventbus.Handler for EventMessageCreated
func (d *DeliveryDispatcher) Handle(ctx context.Context, payload interface{}) error {
	event, ok := payload.(domain.MessageCreated)
	if !ok {
		return fmt.Errorf("dispatcher: unexpected payload %T", payload)
	}
	return d.Enqueue(event)
}

// Enqueue wait at most cfg.Timeout for a queue slot
func (d *DeliveryDispatcher) Enqueue(event domain.MessageCreated) error {
	select {
	case d.queue <- event:
		return nil
	default:
	}

	timer := time.NewTimer(d.cfg.Timeout)
	defer timer.Stop()
	select {
	case d.queue <- event:
		return nil
	case <-d.stop:
		return ErrDispatcherBusy
	case <-timer.C:
		logger.Log.Warn("delivery dropped, queue full",
			zap.String("messageID", event.Message.ID),
			zap.String("recipientID", event.RecipientID),
		)
		return ErrDispatcherBusy
	}
}

func (d *DeliveryDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			// drain
			for {
				select {
				case event := <-d.queue:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

// deliver encode once, write to the recipient and to the sender's other devices
func (d *DeliveryDispatcher) deliver(event domain.MessageCreated) {
	frame, err := domain.NewFrame(domain.FrameMessageCreated, event.Message)
	if err != nil {
		logger.Log.Error("encode message frame failed", zap.String("messageID", event.Message.ID), zap.Error(err))
		return
	}
	data, err := frame.Encode()
	if err != nil {
		logger.Log.Error("encode message frame failed", zap.String("messageID", event.Message.ID), zap.Error(err))
		return
	}

	delivered := d.push(event.RecipientID, "", data)
	if delivered == 0 && d.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		if err := d.notifier.NotifyOffline(ctx, event); err != nil {
			logger.Log.Warn("offline notify failed",
				zap.String("messageID", event.Message.ID),
				zap.String("recipientID", event.RecipientID),
				zap.Error(err),
			)
		}
		cancel()
	}

	if event.Message.SenderID != "" && event.Message.SenderID != event.RecipientID {
		d.push(event.Message.SenderID, event.OriginConnectionID, data)
	}
}

// push write data to every connection of userID except skipID, return how many took it
func (d *DeliveryDispatcher) push(userID, skipID string, data []byte) int {
	n := 0
	for _, conn := range d.presence.ConnectionsFor(userID) {
		if skipID != "" && conn.ID() == skipID {
			continue
		}
		if err := conn.Send(data); err != nil {
			logger.Log.Warn("push failed, closing connection",
				zap.String("userID", userID),
				zap.String("connID", conn.ID()),
				zap.Error(err),
			)
			conn.Close()
			d.presence.Unregister(userID, conn.ID())
			continue
		}
		n++
	}
	return n
}
