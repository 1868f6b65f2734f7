package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusRejected VerificationStatus = "rejected"
)

type VerificationMethod string

const (
	VerificationMethodNone     VerificationMethod = "none"
	VerificationMethodManual   VerificationMethod = "manual"
	VerificationMethodAuto     VerificationMethod = "auto"
	VerificationMethodAutoBulk VerificationMethod = "auto_bulk"
)

// PaymentProof is the payment evidence attached to a ticket.
type PaymentProof struct {
	ScreenshotRef           string             `json:"screenshot_ref"`
	UTR                     string             `json:"utr"`
	ClaimedAmount           decimal.Decimal    `json:"claimed_amount"`
	UploadedAt              time.Time          `json:"uploaded_at"`
	VerificationStatus      VerificationStatus `json:"verification_status"`
	VerificationMethod      VerificationMethod `json:"verification_method"`
	VerifiedBy              string             `json:"verified_by,omitempty"`
	VerifiedAt              *time.Time         `json:"verified_at,omitempty"`
	RejectionReason         string             `json:"rejection_reason,omitempty"`
	Forced                  bool               `json:"forced,omitempty"`
	ExternalMatcherResponse json.RawMessage    `json:"external_matcher_response,omitempty"`
}

func (p *PaymentProof) Scan(src any) error {
	return scanJSONB(src, p)
}

func (p PaymentProof) Value() (driver.Value, error) {
	return jsonbValue(p)
}

func (p *PaymentProof) MarkVerified(method VerificationMethod, by string, at time.Time) {
	p.VerificationStatus = VerificationStatusVerified
	p.VerificationMethod = method
	p.VerifiedBy = by
	p.VerifiedAt = &at
	p.RejectionReason = ""
}

func (p *PaymentProof) MarkRejected(method VerificationMethod, by string, at time.Time, reason string) {
	p.VerificationStatus = VerificationStatusRejected
	p.VerificationMethod = method
	p.VerifiedBy = by
	p.VerifiedAt = &at
	p.RejectionReason = reason
	p.Forced = false
}

type MatchStatus string

const (
	MatchStatusVerified          MatchStatus = "VERIFIED"
	MatchStatusNotFound          MatchStatus = "NOT_FOUND"
	MatchStatusNeedsManualReview MatchStatus = "NEEDS_MANUAL_REVIEW"
)

type MatchRequest struct {
	UTR           string
	Amount        decimal.Decimal
	Date          string
	StatementText string
}

type MatchResult struct {
	Status        MatchStatus      `json:"status"`
	MatchedAmount *decimal.Decimal `json:"matchedAmount,omitempty"`
	MatchedDate   string           `json:"matchedDate,omitempty"`
	Message       string           `json:"message,omitempty"`
}

type BulkResultStatus string

const (
	BulkResultVerified                BulkResultStatus = "VERIFIED"
	BulkResultNotFound                BulkResultStatus = "NOT_FOUND"
	BulkResultNeedsManualReview       BulkResultStatus = "NEEDS_MANUAL_REVIEW"
	BulkResultAmountMismatch          BulkResultStatus = "AMOUNT_MISMATCH"
	BulkResultStatementAmountMismatch BulkResultStatus = "STATEMENT_AMOUNT_MISMATCH"
	BulkResultError                   BulkResultStatus = "ERROR"
)

type BulkVerificationResult struct {
	TicketID       string           `json:"ticket_id"`
	EventID        string           `json:"event_id"`
	GuestName      string           `json:"guest_name"`
	GuestEmail     string           `json:"guest_email"`
	UTR            string           `json:"utr"`
	ClaimedAmount  decimal.Decimal  `json:"claimed_amount"`
	ExpectedAmount decimal.Decimal  `json:"expected_amount"`
	MatchedAmount  *decimal.Decimal `json:"matched_amount,omitempty"`
	Status         BulkResultStatus `json:"status"`
	Message        string           `json:"message,omitempty"`
	IsDuplicateUTR bool             `json:"is_duplicate_utr"`
}

// PendingPayment is a ticket with a proof awaiting verification, joined with its event.
type PendingPayment struct {
	Ticket         Ticket          `json:"ticket"`
	EventTitle     string          `json:"event_title"`
	EventPrice     decimal.Decimal `json:"event_price"`
	HostID         string          `json:"host_id"`
	IsDuplicateUTR bool            `json:"is_duplicate_utr"`
}

func (p PendingPayment) ExpectedAmount() decimal.Decimal {
	return p.Ticket.EffectivePrice(p.EventPrice)
}

type PendingPaymentsFilter struct {
	// HostID limits results to events of this host. Empty means all events.
	HostID     string
	RequireUTR bool
	Limit      int
	Offset     int
}
