package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbutils "github.com/devkiraa/makeTicket-sub000/db"
	"github.com/devkiraa/makeTicket-sub000/db/events"
	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/pubsub/outbox"
)

const ticketColumns = `
	t.ticket_id, t.event_id, t.scan_code, t.guest_name, t.guest_email, t.guest_phone, t.form_responses,
	t.price_paid, t.payment_status, t.status, t.waitlisted, t.approved, t.checked_in_at, t.checked_in_by,
	t.user_id, t.payment_proof, t.created_at, t.updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return PostgresRepository{db: db}
}

// Register runs decide while holding a lock on the event row, then stores the decided ticket
// together with the returned events. Nothing is written when decide fails.
func (r PostgresRepository) Register(ctx context.Context, eventID string, decide entity.RegistrationFunc) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := dbutils.UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := events.GetForUpdate(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var busEvents []entity.BusEvent
		ticket, busEvents, err = decide(ctx, event, registrationTx{tx: tx, eventID: eventID})
		if err != nil {
			return err
		}

		if err := insert(ctx, tx, ticket); err != nil {
			return err
		}

		return outbox.PublishInTx(ctx, tx, busEvents...)
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

func insert(ctx context.Context, tx *sqlx.Tx, ticket entity.Ticket) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO tickets (
			ticket_id, event_id, scan_code, guest_name, guest_email, guest_phone, form_responses, price_paid,
			payment_status, status, waitlisted, approved, user_id, payment_proof, created_at, updated_at
		) VALUES (
			:ticket_id, :event_id, :scan_code, :guest_name, :guest_email, :guest_phone, :form_responses, :price_paid,
			:payment_status, :status, :waitlisted, :approved, :user_id, :payment_proof, :created_at, :updated_at
		)`, ticket)
	if err != nil {
		return fmt.Errorf("could not insert ticket %s: %w", ticket.TicketID, err)
	}

	return nil
}

type registrationTx struct {
	tx      *sqlx.Tx
	eventID string
}

func (r registrationTx) HasRegistration(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.tx.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM tickets WHERE event_id = $1 AND guest_email = $2)
	`, r.eventID, email)
	if err != nil {
		return false, fmt.Errorf("could not check existing registration: %w", err)
	}

	return exists, nil
}

func (r registrationTx) ReserveSlot(ctx context.Context) (entity.SlotReservation, error) {
	return events.ReserveSlot(ctx, r.tx, r.eventID)
}

func (r registrationTx) CloseEvent(ctx context.Context) error {
	return events.Close(ctx, r.tx, r.eventID)
}

func (r registrationTx) MarkCapacityAlertSent(ctx context.Context) error {
	return events.MarkCapacityAlertSent(ctx, r.tx, r.eventID)
}

func (r PostgresRepository) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	return getTicket(ctx, r.db, ticketID, false)
}

func getTicket(ctx context.Context, q sqlx.QueryerContext, ticketID string, forUpdate bool) (entity.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets t WHERE t.ticket_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var ticket entity.Ticket
	err := sqlx.GetContext(ctx, q, &ticket, query, ticketID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "invalid_text_representation" {
		return entity.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, entity.ErrNotFound)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not get ticket %s: %w", ticketID, err)
	}

	return ticket, nil
}

func getEvent(ctx context.Context, tx *sqlx.Tx, eventID string) (entity.Event, error) {
	var event entity.Event
	err := tx.GetContext(ctx, &event, `SELECT * FROM events WHERE event_id = $1`, eventID)
	if err != nil {
		return entity.Event{}, fmt.Errorf("could not get event %s: %w", eventID, err)
	}

	return event, nil
}

// Update locks the ticket, applies update and persists the result with the returned events.
func (r PostgresRepository) Update(ctx context.Context, ticketID string, update entity.TicketUpdateFunc) (entity.Ticket, error) {
	var ticket entity.Ticket

	err := dbutils.UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var err error
		ticket, err = getTicket(ctx, tx, ticketID, true)
		if err != nil {
			return err
		}

		event, err := getEvent(ctx, tx, ticket.EventID)
		if err != nil {
			return err
		}

		busEvents, err := update(ctx, &ticket, event)
		if err != nil {
			return err
		}

		ticket.UpdatedAt = time.Now().UTC()
		_, err = tx.NamedExecContext(ctx, `
			UPDATE tickets SET
				guest_name = :guest_name,
				guest_email = :guest_email,
				guest_phone = :guest_phone,
				price_paid = :price_paid,
				payment_status = :payment_status,
				status = :status,
				waitlisted = :waitlisted,
				approved = :approved,
				payment_proof = :payment_proof,
				updated_at = :updated_at
			WHERE ticket_id = :ticket_id
		`, ticket)
		if err != nil {
			return fmt.Errorf("could not update ticket %s: %w", ticketID, err)
		}

		return outbox.PublishInTx(ctx, tx, busEvents...)
	})
	if err != nil {
		return entity.Ticket{}, err
	}

	return ticket, nil
}

// Delete locks the event before the ticket, the same order registration uses.
func (r PostgresRepository) Delete(ctx context.Context, ticketID string, validate entity.TicketDeleteFunc) error {
	current, err := r.Get(ctx, ticketID)
	if err != nil {
		return err
	}

	return dbutils.UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		event, err := events.GetForUpdate(ctx, tx, current.EventID)
		if err != nil {
			return err
		}

		ticket, err := getTicket(ctx, tx, ticketID, true)
		if err != nil {
			return err
		}

		releaseSlot, busEvents, err := validate(ctx, ticket, event)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE ticket_id = $1`, ticketID); err != nil {
			return fmt.Errorf("could not delete ticket %s: %w", ticketID, err)
		}

		if releaseSlot {
			if err := events.ReleaseSlot(ctx, tx, event.EventID); err != nil {
				return err
			}
		}

		return outbox.PublishInTx(ctx, tx, busEvents...)
	})
}

// CheckIn moves an issued ticket to checked-in. It returns false when the ticket was not in the issued state.
func (r PostgresRepository) CheckIn(ctx context.Context, ticketID string, scannerID string, at time.Time) (bool, error) {
	checkedIn := false

	err := dbutils.UpdateInTx(ctx, r.db, sql.LevelReadCommitted, func(ctx context.Context, tx *sqlx.Tx) error {
		var eventID string
		err := tx.GetContext(ctx, &eventID, `
			UPDATE tickets
			SET status = 'checked-in', checked_in_at = $3, checked_in_by = $2, updated_at = $3
			WHERE ticket_id = $1 AND status = 'issued'
			RETURNING event_id
		`, ticketID, scannerID, at)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not check in ticket %s: %w", ticketID, err)
		}

		checkedIn = true

		return outbox.PublishInTx(ctx, tx, entity.TicketCheckedIn_v1{
			Header:      entity.NewEventHeaderWithIdempotencyKey("ticket-checked-in-" + ticketID),
			TicketID:    ticketID,
			EventID:     eventID,
			CheckedInBy: scannerID,
			CheckedInAt: at,
		})
	})
	if err != nil {
		return false, err
	}

	return checkedIn, nil
}

// FindByScanCode looks a ticket up by its full scan code, or by a short code prefix when prefix is set.
func (r PostgresRepository) FindByScanCode(ctx context.Context, code string, prefix bool) (entity.Ticket, error) {
	var found []entity.Ticket

	var err error
	if prefix {
		err = r.db.SelectContext(ctx, &found, `
			SELECT `+ticketColumns+` FROM tickets t WHERE t.scan_code LIKE $1 || '%' LIMIT 2
		`, code)
	} else {
		err = r.db.SelectContext(ctx, &found, `SELECT `+ticketColumns+` FROM tickets t WHERE t.scan_code = $1`, code)
	}
	if err != nil {
		return entity.Ticket{}, fmt.Errorf("could not find ticket by scan code: %w", err)
	}

	switch len(found) {
	case 0:
		return entity.Ticket{}, fmt.Errorf("ticket with code %s: %w", code, entity.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return entity.Ticket{}, entity.NewValidationError("short code %s matches more than one ticket, scan the full code", entity.ShortCode(code))
	}
}

func (r PostgresRepository) FindByEventAndEmail(ctx context.Context, eventID string, email string) ([]entity.Ticket, error) {
	var found []entity.Ticket
	err := r.db.SelectContext(ctx, &found, `
		SELECT `+ticketColumns+` FROM tickets t
		WHERE t.event_id = $1 AND t.guest_email = $2
		ORDER BY t.created_at ASC
	`, eventID, email)
	if err != nil {
		return nil, fmt.Errorf("could not find tickets for %s: %w", email, err)
	}

	return found, nil
}

func (r PostgresRepository) ListByEvent(ctx context.Context, eventID string, statuses []entity.TicketStatus) ([]entity.Ticket, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	var found []entity.Ticket
	err := r.db.SelectContext(ctx, &found, `
		SELECT `+ticketColumns+` FROM tickets t
		WHERE t.event_id = $1 AND t.status = ANY($2)
		ORDER BY t.created_at ASC
	`, eventID, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("could not list tickets of event %s: %w", eventID, err)
	}

	return found, nil
}

type pendingPaymentRow struct {
	entity.Ticket
	EventTitle string          `db:"event_title"`
	EventPrice decimal.Decimal `db:"event_price"`
	HostID     string          `db:"host_id"`
}

const pendingProofsWhere = `
	WHERE t.payment_proof->>'verification_status' = 'pending'
		AND ($1 = '' OR e.host_id = $1)
		AND (NOT $2 OR COALESCE(t.payment_proof->>'utr', '') <> '')`

func (r PostgresRepository) ListPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) ([]entity.PendingPayment, error) {
	var rows []pendingPaymentRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+ticketColumns+`, e.title AS event_title, e.price AS event_price, e.host_id AS host_id
		FROM tickets t
		JOIN events e ON e.event_id = t.event_id
		`+pendingProofsWhere+`
		ORDER BY t.payment_proof->>'uploaded_at' ASC, t.ticket_id ASC
		LIMIT NULLIF($3::int, 0) OFFSET $4
	`, filter.HostID, filter.RequireUTR, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("could not list pending payment proofs: %w", err)
	}

	pending := make([]entity.PendingPayment, 0, len(rows))
	for _, row := range rows {
		pending = append(pending, entity.PendingPayment{
			Ticket:     row.Ticket,
			EventTitle: row.EventTitle,
			EventPrice: row.EventPrice,
			HostID:     row.HostID,
		})
	}

	return pending, nil
}

func (r PostgresRepository) CountPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM tickets t
		JOIN events e ON e.event_id = t.event_id
		`+pendingProofsWhere, filter.HostID, filter.RequireUTR)
	if err != nil {
		return 0, fmt.Errorf("could not count pending payment proofs: %w", err)
	}

	return count, nil
}

// UTRUsage counts pending or verified proofs per transaction reference, skipping the given tickets.
func (r PostgresRepository) UTRUsage(ctx context.Context, utrs []string, excludeTicketIDs []string) (map[string]int, error) {
	usage := make(map[string]int, len(utrs))
	if len(utrs) == 0 {
		return usage, nil
	}
	if excludeTicketIDs == nil {
		excludeTicketIDs = []string{}
	}

	var rows []struct {
		UTR   string `db:"utr"`
		Count int    `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT payment_proof->>'utr' AS utr, COUNT(*) AS count
		FROM tickets
		WHERE payment_proof->>'utr' = ANY($1)
			AND payment_proof->>'verification_status' IN ('pending', 'verified')
			AND NOT (ticket_id::text = ANY($2))
		GROUP BY payment_proof->>'utr'
	`, pq.Array(utrs), pq.Array(excludeTicketIDs))
	if err != nil {
		return nil, fmt.Errorf("could not count transaction reference usage: %w", err)
	}

	for _, row := range rows {
		usage[row.UTR] = row.Count
	}

	return usage, nil
}
