package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"direct_message_service/internal/chat/domain"

	"github.com/streadway/amqp"
)

// OfflineJobType job type consumed by the push-notification worker
const OfflineJobType = "offline_message"

// amqpPublisher the part of *amqp.Channel the notifier uses
type amqpPublisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// OfflineJob 離線通知 job, the body is reduced to a snippet
type OfflineJob struct {
	Type        string    `json:"type"`
	MessageID   string    `json:"message_id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Snippet     string    `json:"snippet"`
	CreatedAt   time.Time `json:"created_at"`
}

// RabbitOfflineNotifier enqueue an OfflineJob per undelivered message
type RabbitOfflineNotifier struct {
	ch    amqpPublisher
	queue string
}

// NewRabbitOfflineNotifier create RabbitOfflineNotifier, ch is usually an *amqp.Channel
func NewRabbitOfflineNotifier(ch amqpPublisher, queue string) *RabbitOfflineNotifier {
	return &RabbitOfflineNotifier{ch: ch, queue: queue}
}

// DeclareQueue declare the durable job queue
func DeclareQueue(ch *amqp.Channel, queue string) error {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

// NotifyOffline implement OfflineNotifier
func (n *RabbitOfflineNotifier) NotifyOffline(ctx context.Context, event domain.MessageCreated) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job := OfflineJob{
		Type:        OfflineJobType,
		MessageID:   event.Message.ID,
		SenderID:    event.Message.SenderID,
		RecipientID: event.RecipientID,
		Snippet:     domain.Snippet(event.Message.Body),
		CreatedAt:   event.Message.CreatedAt,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal offline job: %w", err)
	}

	err = n.ch.Publish(
		"",      // 預設 exchange
		n.queue, // queue 名稱
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.Message.ID,
			Body:         data,
		},
	)
	if err != nil {
		return fmt.Errorf("publish offline job %s: %w", event.Message.ID, err)
	}
	return nil
}
