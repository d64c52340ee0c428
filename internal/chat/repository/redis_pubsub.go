package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"direct_message_service/internal/chat/domain"
	"direct_message_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// userChannelPrefix one channel per target user
const userChannelPrefix = "chat:user:"

// Emitter local fan-out the relay re-emits into, *eventbus.Bus
type Emitter interface {
	Emit(ctx context.Context, name string, payload interface{})
}

// envelope wire format on the redis channel
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// RedisPubSub definition cross-node event relay over redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// UserChannel channel name of userID
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Publish 將 event 序列化後, 發布到目標 user 的 channel
func (r *RedisPubSub) Publish(ctx context.Context, event domain.Event) error {
	data, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, UserChannel(event.TargetUserID()), data).Err()
}

// Run 訂閱所有 user channel, 收到後丟回本機 bus. Blocks until ctx is done.
func (r *RedisPubSub) Run(ctx context.Context, emitter Emitter) error {
	sub := r.client.PSubscribe(ctx, userChannelPrefix+"*")
	defer sub.Close()

	// wait for the subscription confirmation so publishes after Run starts are not lost
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s*: %w", userChannelPrefix, err)
	}
	logger.Log.Info("redis relay subscribed", zap.String("pattern", userChannelPrefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("redis relay closed")
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := DecodeEvent([]byte(m.Payload))
			if err != nil {
				logger.Log.Error("redis relay decode failed",
					zap.String("channel", m.Channel),
					zap.Error(err),
				)
				continue
			}
			if target := strings.TrimPrefix(m.Channel, userChannelPrefix); target != event.TargetUserID() {
				logger.Log.Warn("redis relay channel / target mismatch",
					zap.String("channel", m.Channel),
					zap.String("target", event.TargetUserID()),
				)
			}
			emitter.Emit(ctx, event.EventName(), event)
		}
	}
}

// EncodeEvent wrap event into the relay envelope
func EncodeEvent(event domain.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.EventName(), err)
	}
	return json.Marshal(envelope{Event: event.EventName(), Payload: payload})
}

// DecodeEvent inverse of EncodeEvent, unknown names are an error
func DecodeEvent(data []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Event {
	case domain.EventMessageCreated:
		var e domain.MessageCreated
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Event, err)
		}
		return e, nil
	case domain.EventMessagesRead:
		var e domain.MessagesRead
		if err := json.Unmarshal(env.Payload, &e); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Event, err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unknown event %q", env.Event)
}
