package entity

import "context"

type SlotReservation struct {
	Reserved       bool
	ConfirmedCount int
}

// RegistrationTx is the set of writes a registration performs while holding the event row lock.
type RegistrationTx interface {
	HasRegistration(ctx context.Context, email string) (bool, error)
	ReserveSlot(ctx context.Context) (SlotReservation, error)
	CloseEvent(ctx context.Context) error
	MarkCapacityAlertSent(ctx context.Context) error
}

// RegistrationFunc decides the ticket to create. Returned events are published in the same transaction.
type RegistrationFunc func(ctx context.Context, event Event, tx RegistrationTx) (Ticket, []BusEvent, error)

// TicketUpdateFunc mutates a locked ticket. Returned events are published in the same transaction.
type TicketUpdateFunc func(ctx context.Context, ticket *Ticket, event Event) ([]BusEvent, error)

type RegistrationStatus struct {
	Registered bool         `json:"registered"`
	TicketID   string       `json:"ticket_id,omitempty"`
	Status     TicketStatus `json:"status,omitempty"`
}

// TicketDeleteFunc validates the removal of a locked ticket and says whether its capacity slot must be released.
type TicketDeleteFunc func(ctx context.Context, ticket Ticket, event Event) (releaseSlot bool, busEvents []BusEvent, err error)
