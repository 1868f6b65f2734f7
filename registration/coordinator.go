package registration

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/metrics"
)

type Outcome string

const (
	OutcomeIssued          Outcome = "issued"
	OutcomePendingApproval Outcome = "pending_approval"
	OutcomePendingPayment  Outcome = "pending_payment"
	OutcomeWaitlisted      Outcome = "waitlisted"
)

type RegisterRequest struct {
	EventID       string
	FormResponses entity.FormResponses
	// Email overrides the answer of the form's email field.
	Email       string
	BearerToken string
}

type Result struct {
	Ticket  entity.Ticket
	Outcome Outcome
}

// Confirmed is true when the guest holds an issued ticket right away.
func (r Result) Confirmed() bool {
	return r.Outcome == OutcomeIssued
}

type entitlements struct {
	waitlist bool
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	logger := log.FromContext(ctx).WithField("event_id", req.EventID)

	result, err := s.register(ctx, req)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues(registrationFailureLabel(err)).Inc()
		return Result{}, err
	}

	metrics.RegistrationsTotal.WithLabelValues(string(result.Outcome)).Inc()
	logger.WithField("ticket_id", result.Ticket.TicketID).
		WithField("outcome", result.Outcome).
		Info("Registration accepted")

	return result, nil
}

func (s *Service) register(ctx context.Context, req RegisterRequest) (Result, error) {
	event, err := s.events.Get(ctx, req.EventID)
	if err != nil {
		return Result{}, err
	}

	if err := s.checkOpen(event); err != nil {
		return Result{}, err
	}

	if missing := event.FormSchema.MissingRequired(req.FormResponses); len(missing) > 0 {
		return Result{}, entity.NewValidationError("missing required fields: %s", strings.Join(missing, ", "))
	}

	guest := event.FormSchema.Guest(req.FormResponses)
	if email := entity.NormalizeEmail(req.Email); email != "" {
		guest.Email = email
	}
	if guest.Email != "" {
		if _, err := mail.ParseAddress(guest.Email); err != nil {
			return Result{}, entity.NewValidationError("invalid email %q", guest.Email)
		}
	} else if !event.AllowMultipleRegistrations {
		return Result{}, entity.NewValidationError("email is required")
	}
	if guest.Name == "" {
		guest.Name = guest.Email
	}

	allowed, err := s.checkEntitlements(ctx, event)
	if err != nil {
		return Result{}, err
	}

	var outcome Outcome

	ticket, err := s.tickets.Register(ctx, event.EventID, func(ctx context.Context, event entity.Event, tx entity.RegistrationTx) (entity.Ticket, []entity.BusEvent, error) {
		// the event may have changed between the read above and the lock
		if err := s.checkOpen(event); err != nil {
			return entity.Ticket{}, nil, err
		}

		if !event.AllowMultipleRegistrations {
			exists, err := tx.HasRegistration(ctx, guest.Email)
			if err != nil {
				return entity.Ticket{}, nil, err
			}
			if exists {
				return entity.Ticket{}, nil, entity.ErrDuplicateRegistration
			}
		}

		waitlistEnabled := event.WaitlistEnabled && allowed.waitlist

		reservation, err := tx.ReserveSlot(ctx)
		if err != nil {
			return entity.Ticket{}, nil, err
		}
		waitlisted := !reservation.Reserved
		if waitlisted && !waitlistEnabled {
			return entity.Ticket{}, nil, entity.ErrCapacityExceeded
		}

		ticket, err := s.newTicket(event, guest, req.FormResponses)
		if err != nil {
			return entity.Ticket{}, nil, err
		}

		if event.IsPaid() {
			caller, err := s.credentials.Validate(req.BearerToken)
			if err != nil {
				return entity.Ticket{}, nil, err
			}
			ticket.UserID = caller.AccountID
			ticket.PricePaid = event.Price
			ticket.PaymentStatus = entity.PaymentStatusCompleted
			if event.RequiresPaymentProof() {
				ticket.PaymentStatus = entity.PaymentStatusPending
			}
		} else if req.BearerToken != "" {
			if caller, err := s.credentials.Validate(req.BearerToken); err == nil {
				ticket.UserID = caller.AccountID
			}
		}

		switch {
		case waitlisted:
			ticket.Status = entity.TicketStatusWaitlisted
			ticket.Waitlisted = true
			outcome = OutcomeWaitlisted
		case event.ApprovalRequired:
			ticket.Status = entity.TicketStatusPending
			outcome = OutcomePendingApproval
		case ticket.PaymentStatus == entity.PaymentStatusPending:
			ticket.Status = entity.TicketStatusPending
			ticket.Approved = true
			outcome = OutcomePendingPayment
		default:
			ticket.Status = entity.TicketStatusIssued
			ticket.Approved = true
			outcome = OutcomeIssued
		}

		busEvents := []entity.BusEvent{newTicketRegistered(ticket, event)}
		if ticket.Status == entity.TicketStatusIssued {
			busEvents = append(busEvents, entity.NewTicketIssued(ticket, event))
		}

		if reservation.Reserved && event.HasCapacityLimit() {
			if reservation.ConfirmedCount >= event.Capacity && !waitlistEnabled {
				if err := tx.CloseEvent(ctx); err != nil {
					return entity.Ticket{}, nil, err
				}
			}

			if !event.CapacityAlertSent && event.ReachedAlertThreshold(reservation.ConfirmedCount) {
				if err := tx.MarkCapacityAlertSent(ctx); err != nil {
					return entity.Ticket{}, nil, err
				}
				busEvents = append(busEvents, entity.EventCapacityAlert_v1{
					Header:         entity.NewEventHeaderWithIdempotencyKey("capacity-alert-" + event.EventID),
					EventID:        event.EventID,
					EventTitle:     event.Title,
					HostID:         event.HostID,
					Capacity:       event.Capacity,
					ConfirmedCount: reservation.ConfirmedCount,
				})
			}
		}

		return ticket, busEvents, nil
	})
	if errors.Is(err, entity.ErrCapacityExceeded) {
		// the rejected registration rolled back, so the event is closed outside of it
		if closeErr := s.events.CloseIfFull(ctx, event.EventID, allowed.waitlist); closeErr != nil {
			log.FromContext(ctx).WithError(closeErr).Warn("Could not close full event")
		}
	}
	if err != nil {
		return Result{}, err
	}

	return Result{Ticket: ticket, Outcome: outcome}, nil
}

func (s *Service) checkOpen(event entity.Event) error {
	switch {
	case event.Status == entity.EventStatusClosed && event.IsFull():
		return fmt.Errorf("event %s: %w", event.EventID, entity.ErrCapacityExceeded)
	case event.Status != entity.EventStatusActive:
		return fmt.Errorf("event %s is %s: %w", event.EventID, event.Status, entity.ErrRegistrationClosed)
	case event.RegistrationPaused:
		return entity.ErrRegistrationPaused
	case event.RegistrationClosedAt(s.now()):
		return fmt.Errorf("registration closed at %s: %w", event.RegistrationCloseTime.Format("2006-01-02 15:04"), entity.ErrRegistrationClosed)
	}

	return nil
}

// checkEntitlements asks whether the host's plan covers this registration.
// A plan without waitlists makes the event behave as if its waitlist were disabled.
func (s *Service) checkEntitlements(ctx context.Context, event entity.Event) (entitlements, error) {
	required := []entity.Feature{entity.FeatureAttendees}
	if event.IsPaid() {
		required = append(required, entity.FeaturePaidEvents)
	}

	for _, feature := range required {
		entitlement, err := s.entitlements.CheckFeature(ctx, event.HostID, feature)
		if err != nil {
			return entitlements{}, fmt.Errorf("could not check %s entitlement: %w", feature, err)
		}
		if !entitlement.Allowed {
			return entitlements{}, entity.NotEntitledError{Feature: feature, Reason: entitlement.Reason}
		}
	}

	allowed := entitlements{}
	if event.WaitlistEnabled {
		entitlement, err := s.entitlements.CheckFeature(ctx, event.HostID, entity.FeatureWaitlist)
		if err != nil {
			return entitlements{}, fmt.Errorf("could not check waitlist entitlement: %w", err)
		}
		allowed.waitlist = entitlement.Allowed
		if !entitlement.Allowed {
			log.FromContext(ctx).WithField("event_id", event.EventID).
				WithField("reason", entitlement.Reason).
				Info("Waitlist not available on host plan")
		}
	}

	return allowed, nil
}

func (s *Service) newTicket(event entity.Event, guest entity.GuestDetails, responses entity.FormResponses) (entity.Ticket, error) {
	scanCode, err := entity.NewScanCode()
	if err != nil {
		return entity.Ticket{}, err
	}

	now := s.now()

	return entity.Ticket{
		TicketID:      uuid.NewString(),
		EventID:       event.EventID,
		ScanCode:      scanCode,
		GuestName:     guest.Name,
		GuestEmail:    guest.Email,
		GuestPhone:    guest.Phone,
		FormResponses: responses,
		PricePaid:     decimal.Zero,
		PaymentStatus: entity.PaymentStatusFree,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func newTicketRegistered(ticket entity.Ticket, event entity.Event) entity.TicketRegistered_v1 {
	return entity.TicketRegistered_v1{
		Header:        entity.NewEventHeaderWithIdempotencyKey("ticket-registered-" + ticket.TicketID),
		TicketID:      ticket.TicketID,
		EventID:       event.EventID,
		EventTitle:    event.Title,
		HostID:        event.HostID,
		SheetID:       event.SheetID,
		GuestName:     ticket.GuestName,
		GuestEmail:    ticket.GuestEmail,
		GuestPhone:    ticket.GuestPhone,
		Status:        ticket.Status,
		PaymentStatus: ticket.PaymentStatus,
		FormResponses: ticket.FormResponses,
		RegisteredAt:  ticket.CreatedAt,
	}
}

func registrationFailureLabel(err error) string {
	switch {
	case errors.Is(err, entity.ErrDuplicateRegistration):
		return "duplicate"
	case errors.Is(err, entity.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, entity.ErrRegistrationClosed), errors.Is(err, entity.ErrRegistrationPaused):
		return "closed"
	case errors.Is(err, entity.ErrAuthRequired), errors.Is(err, entity.ErrInvalidCredential):
		return "unauthenticated"
	case errors.Is(err, entity.ErrNotEntitled):
		return "not_entitled"
	case errors.Is(err, entity.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

// CheckRegistration tells whether email already holds a ticket for the event.
func (s *Service) CheckRegistration(ctx context.Context, eventID string, email string) (entity.RegistrationStatus, error) {
	email = entity.NormalizeEmail(email)
	if email == "" {
		return entity.RegistrationStatus{}, entity.NewValidationError("email is required")
	}

	if _, err := s.events.Get(ctx, eventID); err != nil {
		return entity.RegistrationStatus{}, err
	}

	tickets, err := s.tickets.FindByEventAndEmail(ctx, eventID, email)
	if err != nil {
		return entity.RegistrationStatus{}, err
	}
	if len(tickets) == 0 {
		return entity.RegistrationStatus{Registered: false}, nil
	}

	return entity.RegistrationStatus{
		Registered: true,
		TicketID:   tickets[0].TicketID,
		Status:     tickets[0].Status,
	}, nil
}

// CreateEvent stores a new event owned by caller. Form field roles are resolved here, once.
func (s *Service) CreateEvent(ctx context.Context, caller entity.Caller, event entity.Event) (entity.Event, error) {
	if caller.Role != entity.RoleHost && !caller.IsAdmin() {
		return entity.Event{}, entity.ErrNotAuthorized
	}

	event.Title = strings.TrimSpace(event.Title)
	switch {
	case event.Title == "":
		return entity.Event{}, entity.NewValidationError("title is required")
	case event.Capacity < 0:
		return entity.Event{}, entity.NewValidationError("capacity cannot be negative")
	case event.Price.IsNegative():
		return entity.Event{}, entity.NewValidationError("price cannot be negative")
	case event.Status != "" && event.Status != entity.EventStatusDraft && event.Status != entity.EventStatusActive:
		return entity.Event{}, entity.NewValidationError("new events must be draft or active")
	}

	event.EventID = uuid.NewString()
	event.HostID = caller.AccountID
	if event.Status == "" {
		event.Status = entity.EventStatusActive
	}
	event.ConfirmedCount = 0
	event.CapacityAlertSent = false
	event.FormSchema = entity.AssignFormRoles(event.FormSchema)
	event.CreatedAt = s.now()

	if err := s.events.Create(ctx, event); err != nil {
		return entity.Event{}, err
	}

	log.FromContext(ctx).WithField("event_id", event.EventID).Info("Event created")

	return event, nil
}
