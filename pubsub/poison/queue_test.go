package poison_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub000/pubsub/poison"
)

const topic = "poison-test"

func streamEntry(t *testing.T, streamID string, msg *message.Message) redis.XMessage {
	t.Helper()

	values, err := redisstream.DefaultMarshallerUnmarshaller{}.Marshal(topic, msg)
	require.NoError(t, err)

	// redis hands every field back as a string
	for key, value := range values {
		if b, ok := value.([]byte); ok {
			values[key] = string(b)
		}
	}

	return redis.XMessage{ID: streamID, Values: values}
}

func poisoned(id string) *message.Message {
	msg := message.NewMessage(id, []byte(`{"ticket_id":"t-1"}`))
	msg.Metadata.Set("name", "TicketIssued_v1")
	msg.Metadata.Set(middleware.ReasonForPoisonedKey, "notifications unavailable")
	msg.Metadata.Set(middleware.PoisonedTopicKey, "events.TicketIssued_v1")
	msg.Metadata.Set(middleware.PoisonedHandlerKey, "SendTicketConfirmation")
	return msg
}

func TestQueue_Preview(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectXRange(topic, "-", "+").SetVal([]redis.XMessage{
		streamEntry(t, "1-0", poisoned("msg-1")),
	})

	queue := poison.NewQueue(rdb, topic, gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}))

	messages, err := queue.Preview(context.Background())
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, "1-0", messages[0].StreamID)
	assert.Equal(t, "msg-1", messages[0].ID)
	assert.Equal(t, "notifications unavailable", messages[0].Reason)
	assert.Equal(t, "events.TicketIssued_v1", messages[0].Topic)
	assert.Equal(t, "SendTicketConfirmation", messages[0].Handler)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Remove(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectXRange(topic, "-", "+").SetVal([]redis.XMessage{
		streamEntry(t, "1-0", poisoned("msg-1")),
		streamEntry(t, "2-0", poisoned("msg-2")),
	})
	mock.ExpectXDel(topic, "2-0").SetVal(1)

	queue := poison.NewQueue(rdb, topic, gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}))

	require.NoError(t, queue.Remove(context.Background(), "msg-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueue_Remove_unknown_message(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectXRange(topic, "-", "+").SetVal([]redis.XMessage{})

	queue := poison.NewQueue(rdb, topic, gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{}))

	err := queue.Remove(context.Background(), "missing")
	assert.ErrorContains(t, err, "not found")
}

func TestQueue_Requeue(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectXRange(topic, "-", "+").SetVal([]redis.XMessage{
		streamEntry(t, "1-0", poisoned("msg-1")),
	})
	mock.ExpectXDel(topic, "1-0").SetVal(1)

	pubSub := gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{})
	defer pubSub.Close()

	queue := poison.NewQueue(rdb, topic, pubSub)
	require.NoError(t, queue.Requeue(context.Background(), "msg-1"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "events.TicketIssued_v1")
	require.NoError(t, err)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, "msg-1", msg.UUID)
		assert.Equal(t, "TicketIssued_v1", msg.Metadata.Get("name"))
		assert.Empty(t, msg.Metadata.Get(middleware.ReasonForPoisonedKey))
		assert.Empty(t, msg.Metadata.Get(middleware.PoisonedTopicKey))
	case <-ctx.Done():
		t.Fatal("requeued message not published")
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}
