package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/shopspring/decimal"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/metrics"
)

type TicketsRepository interface {
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	Update(ctx context.Context, ticketID string, update entity.TicketUpdateFunc) (entity.Ticket, error)
	ListPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) ([]entity.PendingPayment, error)
	CountPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) (int, error)
	UTRUsage(ctx context.Context, utrs []string, excludeTicketIDs []string) (map[string]int, error)
}

type EventsRepository interface {
	Get(ctx context.Context, eventID string) (entity.Event, error)
}

type StatementMatcher interface {
	Match(ctx context.Context, request entity.MatchRequest) (entity.MatchResult, error)
}

type Config struct {
	Tolerance     decimal.Decimal
	StaleAfter    time.Duration
	BulkBatchSize int
}

const notFoundReason = "UTR not found in statement"

// Verifier reconciles payment proofs with the expected ticket price, by hand or against a bank statement.
type Verifier struct {
	tickets TicketsRepository
	events  EventsRepository
	matcher StatementMatcher
	config  Config

	now func() time.Time
}

func NewVerifier(tickets TicketsRepository, events EventsRepository, matcher StatementMatcher, config Config) *Verifier {
	if tickets == nil {
		panic("tickets repository is required")
	}
	if events == nil {
		panic("events repository is required")
	}
	if matcher == nil {
		panic("statement matcher is required")
	}
	if config.Tolerance.IsNegative() {
		panic("tolerance must not be negative")
	}
	if config.BulkBatchSize <= 0 {
		config.BulkBatchSize = 5
	}

	return &Verifier{
		tickets: tickets,
		events:  events,
		matcher: matcher,
		config:  config,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type Decision string

const (
	DecisionVerify Decision = "verify"
	DecisionReject Decision = "reject"
)

type ManualVerification struct {
	Decision Decision
	Reason   string
	// Force skips transaction reference and amount checks. The proof keeps a record of it.
	Force bool
}

type ManualResult struct {
	Ticket   entity.Ticket `json:"ticket"`
	Warnings []string      `json:"warnings,omitempty"`
}

func (v *Verifier) VerifyManual(ctx context.Context, ticketID string, caller entity.Caller, req ManualVerification) (ManualResult, error) {
	if req.Decision != DecisionVerify && req.Decision != DecisionReject {
		return ManualResult{}, entity.NewValidationError("decision must be %q or %q", DecisionVerify, DecisionReject)
	}

	var warnings []string

	ticket, err := v.tickets.Update(ctx, ticketID, func(ctx context.Context, ticket *entity.Ticket, event entity.Event) ([]entity.BusEvent, error) {
		if !event.IsManagedBy(caller) {
			return nil, entity.ErrNotAuthorized
		}
		if ticket.PaymentProof == nil {
			return nil, entity.NewValidationError("ticket has no payment proof")
		}

		if req.Decision == DecisionReject {
			reason := req.Reason
			if reason == "" {
				reason = "rejected by host"
			}
			return rejectProof(ticket, entity.VerificationMethodManual, caller.AccountID, v.now(), reason)
		}

		if ticket.PaymentProof.VerificationStatus == entity.VerificationStatusVerified {
			return nil, nil
		}

		expected := ticket.EffectivePrice(event.Price)
		if req.Force {
			log.FromContext(ctx).
				WithField("ticket_id", ticket.TicketID).
				WithField("verified_by", caller.AccountID).
				WithField("utr", ticket.PaymentProof.UTR).
				WithField("claimed_amount", ticket.PaymentProof.ClaimedAmount.String()).
				WithField("expected_amount", expected.String()).
				Warn("Payment verified with force, validation skipped")
		} else {
			if err := CheckUTR(ticket.PaymentProof.UTR); errors.Is(err, entity.ErrMissingUTR) {
				return nil, err
			}
			if err := ValidateAmount(expected, ticket.PaymentProof.ClaimedAmount, v.config.Tolerance); err != nil {
				return nil, err
			}
		}

		warnings = stalenessWarnings(*ticket.PaymentProof, v.now(), v.config.StaleAfter)

		ticket.PaymentProof.MarkVerified(entity.VerificationMethodManual, caller.AccountID, v.now())
		ticket.PaymentProof.Forced = req.Force

		return issueTicket(ticket, event, expected), nil
	})
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodManual), "error").Inc()
		return ManualResult{}, err
	}

	metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodManual), string(req.Decision)).Inc()

	return ManualResult{Ticket: ticket, Warnings: warnings}, nil
}

type AutoVerification struct {
	StatementText string
	// Date of the transfer as YYYY-MM-DD. Defaults to the upload day.
	Date string
}

type AutoResult struct {
	Ticket entity.Ticket      `json:"ticket"`
	Match  entity.MatchResult `json:"match"`
	// Persisted is false when the proof was left for manual review.
	Persisted bool `json:"persisted"`
}

func (v *Verifier) VerifyAuto(ctx context.Context, ticketID string, caller entity.Caller, req AutoVerification) (AutoResult, error) {
	if req.StatementText == "" {
		return AutoResult{}, entity.NewValidationError("statement text is required")
	}

	ticket, err := v.tickets.Get(ctx, ticketID)
	if err != nil {
		return AutoResult{}, err
	}
	event, err := v.events.Get(ctx, ticket.EventID)
	if err != nil {
		return AutoResult{}, err
	}
	if !event.IsManagedBy(caller) {
		return AutoResult{}, entity.ErrNotAuthorized
	}

	proof := ticket.PaymentProof
	switch {
	case proof == nil:
		return AutoResult{}, entity.NewValidationError("ticket has no payment proof")
	case proof.VerificationStatus == entity.VerificationStatusVerified:
		return AutoResult{}, entity.ErrProofAlreadyVerified
	}
	if err := CheckUTR(proof.UTR); errors.Is(err, entity.ErrMissingUTR) {
		return AutoResult{}, err
	}

	expected := ticket.EffectivePrice(event.Price)
	if err := ValidateAmount(expected, proof.ClaimedAmount, v.config.Tolerance); err != nil {
		return AutoResult{}, err
	}

	match, err := v.match(ctx, *proof, req.StatementText, req.Date)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodAuto), "error").Inc()
		return AutoResult{}, err
	}

	updated, persisted, err := v.applyMatch(ctx, ticket, expected, caller, entity.VerificationMethodAuto, match)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodAuto), "error").Inc()
		return AutoResult{}, err
	}

	metrics.PaymentVerificationsTotal.WithLabelValues(string(entity.VerificationMethodAuto), string(match.Status)).Inc()

	return AutoResult{Ticket: updated, Match: match, Persisted: persisted}, nil
}

func (v *Verifier) match(ctx context.Context, proof entity.PaymentProof, statement string, date string) (entity.MatchResult, error) {
	if date == "" {
		date = proof.UploadedAt.Format(time.DateOnly)
	}

	match, err := v.matcher.Match(ctx, entity.MatchRequest{
		UTR:           proof.UTR,
		Amount:        proof.ClaimedAmount,
		Date:          date,
		StatementText: statement,
	})
	if err != nil {
		return entity.MatchResult{}, fmt.Errorf("could not match payment %s: %w", proof.UTR, err)
	}

	return match, nil
}

// applyMatch persists a matcher answer. Only VERIFIED and NOT_FOUND change the proof.
func (v *Verifier) applyMatch(
	ctx context.Context,
	ticket entity.Ticket,
	expected decimal.Decimal,
	caller entity.Caller,
	method entity.VerificationMethod,
	match entity.MatchResult,
) (entity.Ticket, bool, error) {
	switch match.Status {
	case entity.MatchStatusVerified:
		if match.MatchedAmount == nil {
			return entity.Ticket{}, false, fmt.Errorf("statement match has no amount: %w", entity.ErrAmountMismatch)
		}
		if err := ValidateAmount(expected, *match.MatchedAmount, v.config.Tolerance); err != nil {
			return entity.Ticket{}, false, err
		}
	case entity.MatchStatusNotFound:
	default:
		return ticket, false, nil
	}

	response, err := json.Marshal(match)
	if err != nil {
		return entity.Ticket{}, false, fmt.Errorf("could not marshal matcher response: %w", err)
	}

	utr := ticket.PaymentProof.UTR

	updated, err := v.tickets.Update(ctx, ticket.TicketID, func(ctx context.Context, ticket *entity.Ticket, event entity.Event) ([]entity.BusEvent, error) {
		if !event.IsManagedBy(caller) {
			return nil, entity.ErrNotAuthorized
		}

		proof := ticket.PaymentProof
		switch {
		case proof == nil:
			return nil, entity.NewValidationError("ticket has no payment proof")
		case proof.VerificationStatus == entity.VerificationStatusVerified:
			return nil, entity.ErrProofAlreadyVerified
		case proof.UTR != utr:
			return nil, entity.NewValidationError("payment proof changed during verification")
		}

		proof.ExternalMatcherResponse = response

		if match.Status == entity.MatchStatusNotFound {
			return rejectProof(ticket, method, caller.AccountID, v.now(), notFoundReason)
		}

		proof.MarkVerified(method, caller.AccountID, v.now())
		proof.Forced = false

		return issueTicket(ticket, event, ticket.EffectivePrice(event.Price)), nil
	})
	if err != nil {
		return entity.Ticket{}, false, err
	}

	log.FromContext(ctx).
		WithField("ticket_id", ticket.TicketID).
		WithField("utr", utr).
		WithField("match_status", match.Status).
		Info("Payment proof matched against statement")

	return updated, true, nil
}

func issueTicket(ticket *entity.Ticket, event entity.Event, expected decimal.Decimal) []entity.BusEvent {
	proof := ticket.PaymentProof

	ticket.PaymentStatus = entity.PaymentStatusCompleted
	if !ticket.PricePaid.IsPositive() {
		ticket.PricePaid = expected
	}

	busEvents := []entity.BusEvent{
		entity.PaymentVerified_v1{
			Header:     entity.NewEventHeaderWithIdempotencyKey("payment-verified-" + ticket.TicketID + "-" + proof.UTR),
			TicketID:   ticket.TicketID,
			EventID:    ticket.EventID,
			UTR:        proof.UTR,
			Amount:     proof.ClaimedAmount,
			Method:     proof.VerificationMethod,
			VerifiedBy: proof.VerifiedBy,
			Forced:     proof.Forced,
		},
	}

	switch ticket.Status {
	case entity.TicketStatusCheckedIn, entity.TicketStatusIssued:
		return busEvents
	}

	ticket.Status = entity.TicketStatusIssued

	return append(busEvents, entity.NewTicketIssued(*ticket, event))
}

func rejectProof(ticket *entity.Ticket, method entity.VerificationMethod, by string, at time.Time, reason string) ([]entity.BusEvent, error) {
	if ticket.Status == entity.TicketStatusCheckedIn {
		return nil, entity.ErrTicketCheckedIn
	}

	ticket.PaymentProof.MarkRejected(method, by, at, reason)
	ticket.PaymentStatus = entity.PaymentStatusFailed
	if ticket.Status == entity.TicketStatusIssued {
		ticket.Status = entity.TicketStatusPending
	}

	return []entity.BusEvent{
		entity.PaymentRejected_v1{
			Header:     entity.NewEventHeaderWithIdempotencyKey("payment-rejected-" + ticket.TicketID + "-" + ticket.PaymentProof.UTR),
			TicketID:   ticket.TicketID,
			EventID:    ticket.EventID,
			UTR:        ticket.PaymentProof.UTR,
			Method:     method,
			RejectedBy: by,
			Reason:     reason,
		},
	}, nil
}
