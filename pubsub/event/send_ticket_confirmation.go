package event

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

func (h Handler) SendTicketConfirmationHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"SendTicketConfirmationHandler",
		func(ctx context.Context, event *entity.TicketIssued_v1) error {
			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Sending ticket confirmation")

			err := h.notificationsService.SendTicketConfirmation(ctx, entity.TicketConfirmation{
				TicketID:       event.TicketID,
				EventID:        event.EventID,
				EventTitle:     event.EventTitle,
				GuestName:      event.GuestName,
				GuestEmail:     event.GuestEmail,
				ScanCode:       event.ScanCode,
				ShortCode:      event.ShortCode,
				IdempotencyKey: event.Header.IdempotencyKey,
			})
			if err != nil {
				return fmt.Errorf("could not send ticket confirmation: %w", err)
			}

			return nil
		},
	)
}
