package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			host_id VARCHAR(255) NOT NULL,
			title VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'active',
			capacity INT NOT NULL DEFAULT 0 CHECK (capacity >= 0),
			confirmed_count INT NOT NULL DEFAULT 0 CHECK (confirmed_count >= 0),
			waitlist_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			approval_required BOOLEAN NOT NULL DEFAULT FALSE,
			allow_multiple_registrations BOOLEAN NOT NULL DEFAULT FALSE,
			registration_paused BOOLEAN NOT NULL DEFAULT FALSE,
			registration_close_time TIMESTAMPTZ,
			price NUMERIC(12, 2) NOT NULL DEFAULT 0,
			payment_config JSONB NOT NULL DEFAULT '{}',
			form_schema JSONB NOT NULL DEFAULT '{"fields": []}',
			sheet_id VARCHAR(255) NOT NULL DEFAULT '',
			coordinators JSONB NOT NULL DEFAULT '[]',
			capacity_alert_sent BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id UUID PRIMARY KEY,
			event_id UUID NOT NULL REFERENCES events (event_id) ON DELETE CASCADE,
			scan_code VARCHAR(64) NOT NULL UNIQUE,
			guest_name VARCHAR(255) NOT NULL DEFAULT '',
			guest_email VARCHAR(255) NOT NULL DEFAULT '',
			guest_phone VARCHAR(64) NOT NULL DEFAULT '',
			form_responses JSONB NOT NULL DEFAULT '{}',
			price_paid NUMERIC(12, 2) NOT NULL DEFAULT 0,
			payment_status VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			waitlisted BOOLEAN NOT NULL DEFAULT FALSE,
			approved BOOLEAN NOT NULL DEFAULT FALSE,
			checked_in_at TIMESTAMPTZ,
			checked_in_by VARCHAR(255) NOT NULL DEFAULT '',
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			payment_proof JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS tickets_event_email_idx ON tickets (event_id, guest_email);
		CREATE INDEX IF NOT EXISTS tickets_scan_code_prefix_idx ON tickets (scan_code text_pattern_ops);
		CREATE INDEX IF NOT EXISTS tickets_proof_utr_idx ON tickets ((payment_proof->>'utr')) WHERE payment_proof IS NOT NULL;

		CREATE TABLE IF NOT EXISTS contacts (
			host_id VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			phone VARCHAR(64) NOT NULL DEFAULT '',
			event_ids JSONB NOT NULL DEFAULT '[]',
			registrations_count INT NOT NULL DEFAULT 0,
			last_registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (host_id, email)
		);

		CREATE TABLE IF NOT EXISTS data_lake (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMPTZ NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("could not initialize database schema: %w", err)
	}

	return nil
}
