package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BusEvent interface {
	IsInternal() bool
}

type EventHeader struct {
	ID             string    `json:"id"`
	PublishedAt    time.Time `json:"published_at"`
	IdempotencyKey string    `json:"idempotency_key"`
}

func NewEventHeader() EventHeader {
	return NewEventHeaderWithIdempotencyKey(uuid.NewString())
}

func NewEventHeaderWithIdempotencyKey(idempotencyKey string) EventHeader {
	return EventHeader{
		ID:             uuid.NewString(),
		PublishedAt:    time.Now().UTC(),
		IdempotencyKey: idempotencyKey,
	}
}

type HostNotificationKind string

const (
	HostNotificationRegistration HostNotificationKind = "registration"
	HostNotificationWaitlist     HostNotificationKind = "waitlist"
	HostNotificationApproval     HostNotificationKind = "approval"
	HostNotificationCapacity     HostNotificationKind = "capacity"
)

type TicketRegistered_v1 struct {
	Header EventHeader `json:"header"`

	TicketID      string        `json:"ticket_id"`
	EventID       string        `json:"event_id"`
	EventTitle    string        `json:"event_title"`
	HostID        string        `json:"host_id"`
	SheetID       string        `json:"sheet_id,omitempty"`
	GuestName     string        `json:"guest_name"`
	GuestEmail    string        `json:"guest_email"`
	GuestPhone    string        `json:"guest_phone,omitempty"`
	Status        TicketStatus  `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	FormResponses FormResponses `json:"form_responses"`
	RegisteredAt  time.Time     `json:"registered_at"`
}

func (e TicketRegistered_v1) IsInternal() bool {
	return false
}

// NotificationKind tells the host which queue the new ticket landed in.
func (e TicketRegistered_v1) NotificationKind() HostNotificationKind {
	switch e.Status {
	case TicketStatusWaitlisted:
		return HostNotificationWaitlist
	case TicketStatusPending:
		return HostNotificationApproval
	default:
		return HostNotificationRegistration
	}
}

type TicketIssued_v1 struct {
	Header EventHeader `json:"header"`

	TicketID   string          `json:"ticket_id"`
	EventID    string          `json:"event_id"`
	EventTitle string          `json:"event_title"`
	GuestName  string          `json:"guest_name"`
	GuestEmail string          `json:"guest_email"`
	ScanCode   string          `json:"scan_code"`
	ShortCode  string          `json:"short_code"`
	PricePaid  decimal.Decimal `json:"price_paid"`
}

func (e TicketIssued_v1) IsInternal() bool {
	return false
}

func NewTicketIssued(ticket Ticket, event Event) TicketIssued_v1 {
	return TicketIssued_v1{
		Header:     NewEventHeaderWithIdempotencyKey("ticket-issued-" + ticket.TicketID),
		TicketID:   ticket.TicketID,
		EventID:    event.EventID,
		EventTitle: event.Title,
		GuestName:  ticket.GuestName,
		GuestEmail: ticket.GuestEmail,
		ScanCode:   ticket.ScanCode,
		ShortCode:  ticket.ShortCode(),
		PricePaid:  ticket.PricePaid,
	}
}

type TicketRejected_v1 struct {
	Header EventHeader `json:"header"`

	TicketID   string `json:"ticket_id"`
	EventID    string `json:"event_id"`
	GuestEmail string `json:"guest_email"`
	RejectedBy string `json:"rejected_by"`
	Waitlisted bool   `json:"waitlisted"`
}

func (e TicketRejected_v1) IsInternal() bool {
	return false
}

type TicketCheckedIn_v1 struct {
	Header EventHeader `json:"header"`

	TicketID    string    `json:"ticket_id"`
	EventID     string    `json:"event_id"`
	CheckedInBy string    `json:"checked_in_by"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

func (e TicketCheckedIn_v1) IsInternal() bool {
	return false
}

type PaymentVerified_v1 struct {
	Header EventHeader `json:"header"`

	TicketID   string             `json:"ticket_id"`
	EventID    string             `json:"event_id"`
	UTR        string             `json:"utr"`
	Amount     decimal.Decimal    `json:"amount"`
	Method     VerificationMethod `json:"method"`
	VerifiedBy string             `json:"verified_by"`
	Forced     bool               `json:"forced"`
}

func (e PaymentVerified_v1) IsInternal() bool {
	return false
}

type PaymentRejected_v1 struct {
	Header EventHeader `json:"header"`

	TicketID   string             `json:"ticket_id"`
	EventID    string             `json:"event_id"`
	UTR        string             `json:"utr"`
	Method     VerificationMethod `json:"method"`
	RejectedBy string             `json:"rejected_by"`
	Reason     string             `json:"reason"`
}

func (e PaymentRejected_v1) IsInternal() bool {
	return false
}

type EventCapacityAlert_v1 struct {
	Header EventHeader `json:"header"`

	EventID        string `json:"event_id"`
	EventTitle     string `json:"event_title"`
	HostID         string `json:"host_id"`
	Capacity       int    `json:"capacity"`
	ConfirmedCount int    `json:"confirmed_count"`
}

func (e EventCapacityAlert_v1) IsInternal() bool {
	return true
}
