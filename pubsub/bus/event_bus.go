package bus

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/redis/go-redis/v9"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

const (
	// EventsTopic receives every external event. From there events are stored in the data lake
	// and split into per-event topics.
	EventsTopic = "events"

	serviceName = "svc-registrations"
)

var Marshaler = cqrs.JSONMarshaler{
	GenerateName: cqrs.StructName,
}

func NewEventBus(pub message.Publisher) (*cqrs.EventBus, error) {
	return cqrs.NewEventBusWithConfig(pub, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			event, ok := params.Event.(entity.BusEvent)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entity.BusEvent", params.Event)
			}

			if event.IsInternal() {
				return InternalTopic(params.EventName), nil
			}

			return EventsTopic, nil
		},
		Marshaler: Marshaler,
	})
}

func NewEventProcessorConfig(rdb *redis.Client, logger watermill.LoggerAdapter) cqrs.EventProcessorConfig {
	return cqrs.EventProcessorConfig{
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return redisstream.NewSubscriber(redisstream.SubscriberConfig{
				Client:        rdb,
				ConsumerGroup: serviceName + "." + params.HandlerName,
			}, logger)
		},
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			event, ok := params.EventHandler.NewEvent().(entity.BusEvent)
			if !ok {
				return "", fmt.Errorf("invalid event type: %T doesn't implement entity.BusEvent", params.EventHandler.NewEvent())
			}

			if event.IsInternal() {
				return InternalTopic(params.EventName), nil
			}

			return SplitTopic(params.EventName), nil
		},
		Marshaler: Marshaler,
		Logger:    logger,
	}
}

func InternalTopic(eventName string) string {
	return "internal-events." + serviceName + "." + eventName
}

func SplitTopic(eventName string) string {
	return EventsTopic + "." + eventName
}
