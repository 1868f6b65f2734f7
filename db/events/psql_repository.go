package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

const eventColumns = `
	event_id, host_id, title, status, capacity, confirmed_count, waitlist_enabled, approval_required,
	allow_multiple_registrations, registration_paused, registration_close_time, price, payment_config,
	form_schema, sheet_id, coordinators, capacity_alert_sent, created_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return PostgresRepository{db: db}
}

func (r PostgresRepository) Create(ctx context.Context, event entity.Event) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO events (
			event_id, host_id, title, status, capacity, confirmed_count, waitlist_enabled, approval_required,
			allow_multiple_registrations, registration_paused, registration_close_time, price, payment_config,
			form_schema, sheet_id, coordinators, capacity_alert_sent, created_at
		) VALUES (
			:event_id, :host_id, :title, :status, :capacity, :confirmed_count, :waitlist_enabled, :approval_required,
			:allow_multiple_registrations, :registration_paused, :registration_close_time, :price, :payment_config,
			:form_schema, :sheet_id, :coordinators, :capacity_alert_sent, :created_at
		)`, event)
	if err != nil {
		return fmt.Errorf("could not create event %s: %w", event.EventID, err)
	}

	return nil
}

func (r PostgresRepository) Get(ctx context.Context, eventID string) (entity.Event, error) {
	var event entity.Event
	err := r.db.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE event_id = $1`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not get event %s: %w", eventID, err)
	}

	return event, nil
}

// GetForUpdate locks the event row until tx ends.
func GetForUpdate(ctx context.Context, tx *sqlx.Tx, eventID string) (entity.Event, error) {
	var event entity.Event
	err := tx.GetContext(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE event_id = $1 FOR UPDATE`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Event{}, fmt.Errorf("event %s: %w", eventID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not lock event %s: %w", eventID, err)
	}

	return event, nil
}

// CloseIfFull closes an event whose confirmed tickets reached capacity and which has no usable waitlist.
// waitlistAllowed is false when the host's plan does not cover waitlists.
func (r PostgresRepository) CloseIfFull(ctx context.Context, eventID string, waitlistAllowed bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE events
		SET status = 'closed'
		WHERE event_id = $1
			AND status <> 'closed'
			AND capacity > 0
			AND confirmed_count >= capacity
			AND (NOT waitlist_enabled OR NOT $2)
	`, eventID, waitlistAllowed)
	if err != nil {
		return fmt.Errorf("could not close event %s: %w", eventID, err)
	}

	return nil
}
