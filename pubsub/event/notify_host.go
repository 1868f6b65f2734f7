package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

func (h Handler) NotifyHostHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyHostHandler",
		func(ctx context.Context, event *entity.TicketRegistered_v1) error {
			kind := event.NotificationKind()

			var message string
			switch kind {
			case entity.HostNotificationWaitlist:
				message = fmt.Sprintf("%s joined the waitlist of %s", event.GuestName, event.EventTitle)
			case entity.HostNotificationApproval:
				message = fmt.Sprintf("%s registered for %s and is waiting for approval", event.GuestName, event.EventTitle)
			default:
				message = fmt.Sprintf("%s registered for %s", event.GuestName, event.EventTitle)
			}

			log.FromContext(ctx).WithField("ticket_id", event.TicketID).WithField("kind", kind).Info("Notifying host")

			return h.notificationsService.NotifyHost(ctx, entity.HostNotification{
				HostID:         event.HostID,
				EventID:        event.EventID,
				TicketID:       event.TicketID,
				Kind:           kind,
				Message:        message,
				IdempotencyKey: event.Header.IdempotencyKey,
			})
		},
	)
}

func (h Handler) NotifyHostCapacityHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"NotifyHostCapacityHandler",
		func(ctx context.Context, event *entity.EventCapacityAlert_v1) error {
			log.FromContext(ctx).WithField("event_id", event.EventID).Info("Notifying host about capacity")

			return h.notificationsService.NotifyHost(ctx, entity.HostNotification{
				HostID:  event.HostID,
				EventID: event.EventID,
				Kind:    entity.HostNotificationCapacity,
				Message: fmt.Sprintf(
					"%s is almost full: %d of %d seats taken",
					event.EventTitle, event.ConfirmedCount, event.Capacity,
				),
				IdempotencyKey: event.Header.IdempotencyKey,
			})
		},
	)
}
