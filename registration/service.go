package registration

import (
	"context"
	"time"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type EventsRepository interface {
	Create(ctx context.Context, event entity.Event) error
	Get(ctx context.Context, eventID string) (entity.Event, error)
	CloseIfFull(ctx context.Context, eventID string, waitlistAllowed bool) error
}

type TicketsRepository interface {
	Register(ctx context.Context, eventID string, decide entity.RegistrationFunc) (entity.Ticket, error)
	Get(ctx context.Context, ticketID string) (entity.Ticket, error)
	Update(ctx context.Context, ticketID string, update entity.TicketUpdateFunc) (entity.Ticket, error)
	Delete(ctx context.Context, ticketID string, validate entity.TicketDeleteFunc) error
	CheckIn(ctx context.Context, ticketID string, scannerID string, at time.Time) (bool, error)
	FindByScanCode(ctx context.Context, code string, prefix bool) (entity.Ticket, error)
	FindByEventAndEmail(ctx context.Context, eventID string, email string) ([]entity.Ticket, error)
	ListByEvent(ctx context.Context, eventID string, statuses []entity.TicketStatus) ([]entity.Ticket, error)
}

type EntitlementsService interface {
	CheckFeature(ctx context.Context, accountID string, feature entity.Feature) (entity.Entitlement, error)
}

type CredentialValidator interface {
	Validate(token string) (entity.Caller, error)
}

// Service turns registrations into tickets and moves them through approval and check-in.
type Service struct {
	events       EventsRepository
	tickets      TicketsRepository
	entitlements EntitlementsService
	credentials  CredentialValidator

	now func() time.Time
}

func NewService(
	events EventsRepository,
	tickets TicketsRepository,
	entitlements EntitlementsService,
	credentials CredentialValidator,
) *Service {
	if events == nil {
		panic("events repository is required")
	}
	if tickets == nil {
		panic("tickets repository is required")
	}
	if entitlements == nil {
		panic("entitlements service is required")
	}
	if credentials == nil {
		panic("credential validator is required")
	}

	return &Service{
		events:       events,
		tickets:      tickets,
		entitlements: entitlements,
		credentials:  credentials,
		now:          func() time.Time { return time.Now().UTC() },
	}
}
