package contacts

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) PostgresRepository {
	if db == nil {
		panic("db is nil")
	}

	return PostgresRepository{db: db}
}

// Upsert records the guest in the host's contact list. Re-delivery of the same registration is a no-op.
func (r PostgresRepository) Upsert(ctx context.Context, hostID string, eventID string, guest entity.GuestDetails) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (host_id, email, name, phone, event_ids, registrations_count, last_registered_at)
		VALUES ($1, $2, $3, $4, jsonb_build_array($5::text), 1, NOW())
		ON CONFLICT (host_id, email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END,
			phone = CASE WHEN EXCLUDED.phone <> '' THEN EXCLUDED.phone ELSE contacts.phone END,
			event_ids = CASE
				WHEN contacts.event_ids ? $5 THEN contacts.event_ids
				ELSE contacts.event_ids || jsonb_build_array($5::text)
			END,
			registrations_count = CASE
				WHEN contacts.event_ids ? $5 THEN contacts.registrations_count
				ELSE contacts.registrations_count + 1
			END,
			last_registered_at = NOW()
	`, hostID, guest.Email, guest.Name, guest.Phone, eventID)
	if err != nil {
		return fmt.Errorf("could not upsert contact %s: %w", guest.Email, err)
	}

	return nil
}

func (r PostgresRepository) Get(ctx context.Context, hostID string, email string) (entity.Contact, error) {
	var contact entity.Contact
	err := r.db.GetContext(ctx, &contact, `
		SELECT host_id, email, name, phone, event_ids, registrations_count
		FROM contacts
		WHERE host_id = $1 AND email = $2
	`, hostID, email)
	if err != nil {
		return entity.Contact{}, fmt.Errorf("could not get contact %s: %w", email, err)
	}

	return contact, nil
}
