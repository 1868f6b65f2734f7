package outbox

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-sql/v2/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/components/forwarder"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/pubsub/bus"
	"github.com/devkiraa/makeTicket-sub000/tracing"
)

const Topic = "events_to_forward"

func NewPostgresSubscriber(db *sqlx.DB, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	sub, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:    sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter:   sql.DefaultPostgreSQLOffsetsAdapter{},
		InitializeSchema: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create postgres subscriber: %w", err)
	}

	return sub, nil
}

// NewForwarder moves messages stored in the outbox table to the broker.
func NewForwarder(sub message.Subscriber, pub message.Publisher, logger watermill.LoggerAdapter) (*forwarder.Forwarder, error) {
	fwd, err := forwarder.NewForwarder(sub, pub, logger, forwarder.Config{
		ForwarderTopic: Topic,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create forwarder: %w", err)
	}

	return fwd, nil
}

func NewPublisherForTx(tx *sqlx.Tx, logger watermill.LoggerAdapter) (message.Publisher, error) {
	sqlPublisher, err := sql.NewPublisher(
		tx,
		sql.PublisherConfig{
			SchemaAdapter: sql.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create sql publisher: %w", err)
	}

	var publisher message.Publisher
	publisher = forwarder.NewPublisher(sqlPublisher, forwarder.PublisherConfig{
		ForwarderTopic: Topic,
	})
	publisher = tracing.PublisherDecorator{Publisher: publisher}
	publisher = log.CorrelationPublisherDecorator{Publisher: publisher}

	return publisher, nil
}

// PublishInTx stores events in the outbox as part of tx, so they are sent only if tx commits.
func PublishInTx(ctx context.Context, tx *sqlx.Tx, events ...entity.BusEvent) error {
	if len(events) == 0 {
		return nil
	}

	publisher, err := NewPublisherForTx(tx, log.NewWatermill(log.FromContext(ctx)))
	if err != nil {
		return err
	}

	eventBus, err := bus.NewEventBus(publisher)
	if err != nil {
		return fmt.Errorf("could not create event bus: %w", err)
	}

	for _, event := range events {
		if err := eventBus.Publish(ctx, event); err != nil {
			return fmt.Errorf("could not publish %s: %w", cqrs.StructName(event), err)
		}
	}

	return nil
}

// InitializeSchema creates the outbox tables, so publishing in a transaction works before the forwarder first subscribes.
func InitializeSchema(db *sqlx.DB, logger watermill.LoggerAdapter) error {
	sub, err := sql.NewSubscriber(db, sql.SubscriberConfig{
		SchemaAdapter:  sql.DefaultPostgreSQLSchema{},
		OffsetsAdapter: sql.DefaultPostgreSQLOffsetsAdapter{},
	}, logger)
	if err != nil {
		return fmt.Errorf("could not create postgres subscriber: %w", err)
	}
	defer sub.Close()

	if err := sub.SubscribeInitialize(Topic); err != nil {
		return fmt.Errorf("could not initialize outbox schema: %w", err)
	}

	return nil
}
