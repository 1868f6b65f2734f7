package registration

import (
	"context"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/metrics"
)

type CheckInResult struct {
	Ticket           entity.Ticket
	AlreadyCheckedIn bool
}

// CheckIn validates a scanned code and admits its ticket. Scanning a ticket twice is not an error.
func (s *Service) CheckIn(ctx context.Context, code string, caller entity.Caller) (CheckInResult, error) {
	scanCode, prefix, err := entity.ParseScanCode(code)
	if err != nil {
		return CheckInResult{}, err
	}

	ticket, err := s.tickets.FindByScanCode(ctx, scanCode, prefix)
	if err != nil {
		return CheckInResult{}, err
	}

	event, err := s.events.Get(ctx, ticket.EventID)
	if err != nil {
		return CheckInResult{}, err
	}
	if !event.CanScan(caller) {
		return CheckInResult{}, entity.ErrNotAuthorized
	}

	logger := log.FromContext(ctx).WithField("ticket_id", ticket.TicketID)

	switch ticket.Status {
	case entity.TicketStatusCheckedIn:
		metrics.CheckInsTotal.WithLabelValues("already_checked_in").Inc()
		return CheckInResult{Ticket: ticket, AlreadyCheckedIn: true}, nil
	case entity.TicketStatusIssued:
	default:
		metrics.CheckInsTotal.WithLabelValues("not_issued").Inc()
		return CheckInResult{}, entity.ErrNotIssued
	}

	checkedIn, err := s.tickets.CheckIn(ctx, ticket.TicketID, caller.AccountID, s.now())
	if err != nil {
		return CheckInResult{}, err
	}

	ticket, err = s.tickets.Get(ctx, ticket.TicketID)
	if err != nil {
		return CheckInResult{}, err
	}

	if !checkedIn {
		// someone else scanned it in between
		if ticket.Status != entity.TicketStatusCheckedIn {
			metrics.CheckInsTotal.WithLabelValues("not_issued").Inc()
			return CheckInResult{}, entity.ErrNotIssued
		}
		metrics.CheckInsTotal.WithLabelValues("already_checked_in").Inc()
		return CheckInResult{Ticket: ticket, AlreadyCheckedIn: true}, nil
	}

	metrics.CheckInsTotal.WithLabelValues("checked_in").Inc()
	logger.WithField("scanned_by", caller.AccountID).Info("Ticket checked in")

	return CheckInResult{Ticket: ticket}, nil
}
