package registration

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// Approve issues a pending or waitlisted ticket. Tickets still waiting for a verified payment are only marked approved.
func (s *Service) Approve(ctx context.Context, ticketID string, caller entity.Caller) (entity.Ticket, error) {
	return s.tickets.Update(ctx, ticketID, func(ctx context.Context, ticket *entity.Ticket, event entity.Event) ([]entity.BusEvent, error) {
		if !event.IsManagedBy(caller) {
			return nil, entity.ErrNotAuthorized
		}

		if ticket.Status == entity.TicketStatusIssued || ticket.Status == entity.TicketStatusCheckedIn {
			return nil, nil
		}

		ticket.Approved = true
		if ticket.PaymentStatus == entity.PaymentStatusPending {
			log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).
				Info("Ticket approved, waiting for payment verification")
			return nil, nil
		}

		ticket.Status = entity.TicketStatusIssued

		log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).
			WithField("approved_by", caller.AccountID).
			Info("Ticket approved")

		return []entity.BusEvent{entity.NewTicketIssued(*ticket, event)}, nil
	})
}

// Reject removes a ticket that is still waiting for approval, giving its slot back.
func (s *Service) Reject(ctx context.Context, ticketID string, caller entity.Caller) error {
	return s.tickets.Delete(ctx, ticketID, func(ctx context.Context, ticket entity.Ticket, event entity.Event) (bool, []entity.BusEvent, error) {
		if !event.IsManagedBy(caller) {
			return false, nil, entity.ErrNotAuthorized
		}

		if ticket.Status != entity.TicketStatusPending && ticket.Status != entity.TicketStatusWaitlisted {
			return false, nil, entity.ErrTicketNotPending
		}

		log.FromContext(ctx).WithField("ticket_id", ticket.TicketID).
			WithField("rejected_by", caller.AccountID).
			Info("Ticket rejected")

		return !ticket.Waitlisted, []entity.BusEvent{
			entity.TicketRejected_v1{
				Header:     entity.NewEventHeaderWithIdempotencyKey("ticket-rejected-" + ticket.TicketID),
				TicketID:   ticket.TicketID,
				EventID:    ticket.EventID,
				GuestEmail: ticket.GuestEmail,
				RejectedBy: caller.AccountID,
				Waitlisted: ticket.Waitlisted,
			},
		}, nil
	})
}

func (s *Service) PendingTickets(ctx context.Context, eventID string, caller entity.Caller) ([]entity.Ticket, error) {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsManagedBy(caller) {
		return nil, entity.ErrNotAuthorized
	}

	return s.tickets.ListByEvent(ctx, eventID, []entity.TicketStatus{
		entity.TicketStatusPending,
		entity.TicketStatusWaitlisted,
	})
}
