package entity

import (
	"database/sql/driver"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft  EventStatus = "draft"
	EventStatusActive EventStatus = "active"
	EventStatusClosed EventStatus = "closed"
)

// Event is a registrable occasion owned by a host.
// Capacity 0 means unlimited. ConfirmedCount only counts tickets that are not waitlisted.
type Event struct {
	EventID                    string          `json:"event_id" db:"event_id"`
	HostID                     string          `json:"host_id" db:"host_id"`
	Title                      string          `json:"title" db:"title"`
	Status                     EventStatus     `json:"status" db:"status"`
	Capacity                   int             `json:"capacity" db:"capacity"`
	ConfirmedCount             int             `json:"confirmed_count" db:"confirmed_count"`
	WaitlistEnabled            bool            `json:"waitlist_enabled" db:"waitlist_enabled"`
	ApprovalRequired           bool            `json:"approval_required" db:"approval_required"`
	AllowMultipleRegistrations bool            `json:"allow_multiple_registrations" db:"allow_multiple_registrations"`
	RegistrationPaused         bool            `json:"registration_paused" db:"registration_paused"`
	RegistrationCloseTime      *time.Time      `json:"registration_close_time,omitempty" db:"registration_close_time"`
	Price                      decimal.Decimal `json:"price" db:"price"`
	PaymentConfig              PaymentConfig   `json:"payment_config" db:"payment_config"`
	FormSchema                 FormSchema      `json:"form_schema" db:"form_schema"`
	SheetID                    string          `json:"sheet_id,omitempty" db:"sheet_id"`
	Coordinators               StringList      `json:"coordinators" db:"coordinators"`
	CapacityAlertSent          bool            `json:"capacity_alert_sent" db:"capacity_alert_sent"`
	CreatedAt                  time.Time       `json:"created_at" db:"created_at"`
}

type PaymentConfig struct {
	Enabled           bool   `json:"enabled"`
	RequireProof      bool   `json:"require_proof"`
	AutoVerifyEnabled bool   `json:"auto_verify_enabled"`
	UpiID             string `json:"upi_id,omitempty"`
	UpiName           string `json:"upi_name,omitempty"`
	Note              string `json:"note,omitempty"`
}

func (c *PaymentConfig) Scan(src any) error {
	return scanJSONB(src, c)
}

func (c PaymentConfig) Value() (driver.Value, error) {
	return jsonbValue(c)
}

// StringList is a list of ids stored as a jsonb array.
type StringList []string

func (a *StringList) Scan(src any) error {
	return scanJSONB(src, a)
}

func (a StringList) Value() (driver.Value, error) {
	if a == nil {
		return jsonbValue([]string{})
	}
	return jsonbValue([]string(a))
}

func (e Event) IsPaid() bool {
	return e.Price.IsPositive()
}

func (e Event) HasCapacityLimit() bool {
	return e.Capacity > 0
}

func (e Event) IsFull() bool {
	return e.HasCapacityLimit() && e.ConfirmedCount >= e.Capacity
}

func (e Event) RequiresPaymentProof() bool {
	return e.IsPaid() && e.PaymentConfig.Enabled && e.PaymentConfig.RequireProof
}

// RegistrationClosedAt reports whether the close time has passed at the given moment.
func (e Event) RegistrationClosedAt(now time.Time) bool {
	return e.RegistrationCloseTime != nil && !now.Before(*e.RegistrationCloseTime)
}

// ReachedAlertThreshold reports whether confirmed tickets take at least 90% of the capacity.
func (e Event) ReachedAlertThreshold(confirmedCount int) bool {
	if !e.HasCapacityLimit() {
		return false
	}

	return confirmedCount*10 >= e.Capacity*9
}

func (e Event) IsManagedBy(caller Caller) bool {
	return caller.IsAdmin() || (caller.AccountID != "" && caller.AccountID == e.HostID)
}

func (e Event) CanScan(caller Caller) bool {
	return e.IsManagedBy(caller) || lo.Contains(e.Coordinators, caller.AccountID)
}
