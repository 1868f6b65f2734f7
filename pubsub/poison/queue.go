package poison

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/redis/go-redis/v9"
)

type Message struct {
	StreamID string
	ID       string
	Reason   string
	Topic    string
	Handler  string
	Payload  string
	Metadata message.Metadata
}

// Queue reads the poison queue stream directly, so browsing it does not move messages around.
type Queue struct {
	rdb       redis.Cmdable
	topic     string
	publisher message.Publisher

	unmarshaler redisstream.DefaultMarshallerUnmarshaller
}

func NewQueue(rdb redis.Cmdable, topic string, publisher message.Publisher) Queue {
	if rdb == nil {
		panic("redis client is required")
	}
	if topic == "" {
		panic("missing poison queue topic")
	}
	if publisher == nil {
		panic("publisher is required")
	}

	return Queue{rdb: rdb, topic: topic, publisher: publisher}
}

func (q Queue) Preview(ctx context.Context) ([]Message, error) {
	entries, err := q.rdb.XRange(ctx, q.topic, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("could not read poison queue: %w", err)
	}

	messages := make([]Message, 0, len(entries))
	for _, entry := range entries {
		msg, err := q.unmarshaler.Unmarshal(entry.Values)
		if err != nil {
			return nil, fmt.Errorf("could not unmarshal poison queue entry %s: %w", entry.ID, err)
		}

		messages = append(messages, Message{
			StreamID: entry.ID,
			ID:       msg.UUID,
			Reason:   msg.Metadata.Get(middleware.ReasonForPoisonedKey),
			Topic:    msg.Metadata.Get(middleware.PoisonedTopicKey),
			Handler:  msg.Metadata.Get(middleware.PoisonedHandlerKey),
			Payload:  string(msg.Payload),
			Metadata: msg.Metadata,
		})
	}

	return messages, nil
}

func (q Queue) find(ctx context.Context, messageID string) (Message, error) {
	messages, err := q.Preview(ctx)
	if err != nil {
		return Message{}, err
	}

	for _, m := range messages {
		if m.ID == messageID {
			return m, nil
		}
	}

	return Message{}, fmt.Errorf("message %s not found", messageID)
}

func (q Queue) Remove(ctx context.Context, messageID string) error {
	m, err := q.find(ctx, messageID)
	if err != nil {
		return err
	}

	if err := q.rdb.XDel(ctx, q.topic, m.StreamID).Err(); err != nil {
		return fmt.Errorf("could not remove message %s: %w", messageID, err)
	}

	return nil
}

// Requeue publishes the message back to the topic it was poisoned on and removes it from the queue.
func (q Queue) Requeue(ctx context.Context, messageID string) error {
	m, err := q.find(ctx, messageID)
	if err != nil {
		return err
	}
	if m.Topic == "" {
		return fmt.Errorf("message %s has no source topic", messageID)
	}

	msg := message.NewMessage(m.ID, []byte(m.Payload))
	for key, value := range m.Metadata {
		msg.Metadata.Set(key, value)
	}
	for _, key := range []string{middleware.ReasonForPoisonedKey, middleware.PoisonedTopicKey, middleware.PoisonedHandlerKey, middleware.PoisonedSubscriberKey} {
		delete(msg.Metadata, key)
	}

	if err := q.publisher.Publish(m.Topic, msg); err != nil {
		return fmt.Errorf("could not requeue message %s: %w", messageID, err)
	}

	if err := q.rdb.XDel(ctx, q.topic, m.StreamID).Err(); err != nil {
		return fmt.Errorf("could not remove requeued message %s: %w", messageID, err)
	}

	return nil
}
