package entity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusWaitlisted TicketStatus = "waitlisted"
	TicketStatusIssued     TicketStatus = "issued"
	TicketStatusCheckedIn  TicketStatus = "checked-in"
)

type PaymentStatus string

const (
	PaymentStatusFree      PaymentStatus = "free"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

const (
	scanCodeBytes   = 32
	shortCodeLength = 8
	shortCodePrefix = "TKT-"
)

type Ticket struct {
	TicketID      string          `json:"ticket_id" db:"ticket_id"`
	EventID       string          `json:"event_id" db:"event_id"`
	ScanCode      string          `json:"scan_code" db:"scan_code"`
	GuestName     string          `json:"guest_name" db:"guest_name"`
	GuestEmail    string          `json:"guest_email" db:"guest_email"`
	GuestPhone    string          `json:"guest_phone,omitempty" db:"guest_phone"`
	FormResponses FormResponses   `json:"form_responses" db:"form_responses"`
	PricePaid     decimal.Decimal `json:"price_paid" db:"price_paid"`
	PaymentStatus PaymentStatus   `json:"payment_status" db:"payment_status"`
	Status        TicketStatus    `json:"status" db:"status"`
	Waitlisted    bool            `json:"waitlisted" db:"waitlisted"`
	Approved      bool            `json:"approved" db:"approved"`
	CheckedInAt   *time.Time      `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CheckedInBy   string          `json:"checked_in_by,omitempty" db:"checked_in_by"`
	UserID        string          `json:"user_id,omitempty" db:"user_id"`
	PaymentProof  *PaymentProof   `json:"payment_proof,omitempty" db:"payment_proof"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (t Ticket) ShortCode() string {
	return ShortCode(t.ScanCode)
}

// EffectivePrice is what the guest is expected to pay for this ticket.
func (t Ticket) EffectivePrice(eventPrice decimal.Decimal) decimal.Decimal {
	if t.PricePaid.IsPositive() {
		return t.PricePaid
	}

	return eventPrice
}

func (t Ticket) HasPendingProof() bool {
	return t.PaymentProof != nil && t.PaymentProof.VerificationStatus == VerificationStatusPending
}

// NewScanCode returns 32 random bytes, hex encoded.
func NewScanCode() (string, error) {
	b := make([]byte, scanCodeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("could not generate scan code: %w", err)
	}

	return hex.EncodeToString(b), nil
}

func ShortCode(scanCode string) string {
	if len(scanCode) < shortCodeLength {
		return shortCodePrefix + strings.ToUpper(scanCode)
	}

	return shortCodePrefix + strings.ToUpper(scanCode[:shortCodeLength])
}

// ParseScanCode accepts a full scan code, its 8 character short form, or the TKT- prefixed short form.
// It returns the lower-cased code and whether it is only a prefix.
func ParseScanCode(code string) (string, bool, error) {
	code = strings.TrimSpace(code)
	if len(code) > len(shortCodePrefix) && strings.EqualFold(code[:len(shortCodePrefix)], shortCodePrefix) {
		code = code[len(shortCodePrefix):]
	}
	code = strings.ToLower(code)

	if _, err := hex.DecodeString(padEven(code)); err != nil || code == "" {
		return "", false, NewValidationError("scan code must be hexadecimal")
	}

	switch len(code) {
	case scanCodeBytes * 2:
		return code, false, nil
	case shortCodeLength:
		return code, true, nil
	default:
		return "", false, NewValidationError("scan code must be either the full code or its 8 character short form")
	}
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return s + "0"
	}
	return s
}
