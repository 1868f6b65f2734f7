package event

import (
	"context"
	"slices"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/samber/lo"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

func (h Handler) UpsertContactHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"UpsertContactHandler",
		func(ctx context.Context, event *entity.TicketRegistered_v1) error {
			if event.GuestEmail == "" {
				return nil
			}

			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Debug("Upserting host contact")

			return h.contactsRepository.Upsert(ctx, event.HostID, event.EventID, entity.GuestDetails{
				Name:  event.GuestName,
				Email: event.GuestEmail,
				Phone: event.GuestPhone,
			})
		},
	)
}

func (h Handler) AppendToSheetHandler() cqrs.EventHandler {
	return cqrs.NewEventHandler(
		"AppendToSheetHandler",
		func(ctx context.Context, event *entity.TicketRegistered_v1) error {
			if event.SheetID == "" {
				return nil
			}

			log.FromContext(ctx).WithField("ticket_id", event.TicketID).Info("Appending registration to sheet")

			row := []string{
				event.TicketID,
				event.RegisteredAt.Format(time.RFC3339),
				event.GuestName,
				event.GuestEmail,
				event.GuestPhone,
				string(event.Status),
				string(event.PaymentStatus),
			}
			// answers follow in a stable order, the sheet header is managed by the host
			keys := lo.Keys(event.FormResponses)
			slices.Sort(keys)
			for _, key := range keys {
				row = append(row, event.FormResponses[key])
			}

			return h.spreadsheetsService.AppendRow(ctx, event.SheetID, row)
		},
	)
}
