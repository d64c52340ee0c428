package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/internal/chat/repository"
	"direct_message_service/pkg/eventbus"
	"direct_message_service/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrSinkFull the sink queue is full, the event is dropped
var ErrSinkFull = errors.New("kafka sink queue full")

const (
	defaultSinkQueue = 1024
	sinkBatchSize    = 100
	sinkFlushEvery   = 500 * time.Millisecond
)

// kafkaWriter the part of *kafka.Writer the sink uses
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEventSink forwards chat events to a kafka topic for downstream consumers.
// Delivery is best effort, the bus handler never blocks.
type KafkaEventSink struct {
	writer kafkaWriter
	queue  chan kafka.Message
	done   chan struct{}
	once   sync.Once
}

// NewKafkaEventSink create KafkaEventSink, queueSize <= 0 uses 1024
func NewKafkaEventSink(writer kafkaWriter, queueSize int) *KafkaEventSink {
	if queueSize <= 0 {
		queueSize = defaultSinkQueue
	}
	return &KafkaEventSink{
		writer: writer,
		queue:  make(chan kafka.Message, queueSize),
		done:   make(chan struct{}),
	}
}

// Subscribe register the sink for every chat event
func (s *KafkaEventSink) Subscribe(bus *eventbus.Bus) (unsubscribe func()) {
	u1 := bus.Subscribe(domain.EventMessageCreated, s.Handle)
	u2 := bus.Subscribe(domain.EventMessagesRead, s.Handle)
	return func() {
		u1()
		u2()
	}
}

// Handle eventbus.Handler, encode and enqueue
func (s *KafkaEventSink) Handle(ctx context.Context, payload interface{}) error {
	event, ok := payload.(domain.Event)
	if !ok {
		return fmt.Errorf("kafka sink: unexpected payload %T", payload)
	}
	value, err := repository.EncodeEvent(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(eventKey(event)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event.EventName())},
		},
		Time: time.Now(),
	}
	select {
	case s.queue <- msg:
		return nil
	default:
		return ErrSinkFull
	}
}

// eventKey 同一對話的事件落在同一個 partition
func eventKey(event domain.Event) string {
	switch e := event.(type) {
	case domain.MessageCreated:
		return ConversationKey(e.Message.SenderID, e.RecipientID)
	case domain.MessagesRead:
		return ConversationKey(e.ReaderID, e.PartnerID)
	}
	return event.TargetUserID()
}

// ConversationKey order independent key of a user pair
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Run batch queued messages to the writer until ctx is done, then flush what is left
func (s *KafkaEventSink) Run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(sinkFlushEvery)
	defer ticker.Stop()

	batch := make([]kafka.Message, 0, sinkBatchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := s.writer.WriteMessages(ctx, batch...); err != nil {
			logger.Log.Error("kafka sink write failed", zap.Int("messages", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case msg := <-s.queue:
			batch = append(batch, msg)
			if len(batch) >= sinkBatchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
		drain:
			for {
				select {
				case msg := <-s.queue:
					batch = append(batch, msg)
				default:
					break drain
				}
			}
			fctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(fctx)
			cancel()
			return
		}
	}
}

// Close wait for Run to finish, then close the writer. Call after cancelling Run's ctx.
func (s *KafkaEventSink) Close() error {
	var err error
	s.once.Do(func() {
		<-s.done
		err = s.writer.Close()
	})
	return err
}
