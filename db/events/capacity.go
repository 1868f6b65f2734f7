package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// ReserveSlot takes one confirmed slot if the event has room.
// The check and the increment are a single conditional write, so concurrent callers can't overbook.
func ReserveSlot(ctx context.Context, tx sqlx.QueryerContext, eventID string) (entity.SlotReservation, error) {
	var confirmedCount int
	err := sqlx.GetContext(ctx, tx, &confirmedCount, `
		UPDATE events
		SET confirmed_count = confirmed_count + 1
		WHERE event_id = $1
			AND (capacity = 0 OR confirmed_count < capacity)
		RETURNING confirmed_count
	`, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.SlotReservation{Reserved: false}, nil
	}
	if err != nil {
		return entity.SlotReservation{}, fmt.Errorf("could not reserve slot for event %s: %w", eventID, err)
	}

	return entity.SlotReservation{Reserved: true, ConfirmedCount: confirmedCount}, nil
}

func ReleaseSlot(ctx context.Context, tx sqlx.ExecerContext, eventID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE events
		SET confirmed_count = confirmed_count - 1
		WHERE event_id = $1 AND confirmed_count > 0
	`, eventID)
	if err != nil {
		return fmt.Errorf("could not release slot for event %s: %w", eventID, err)
	}

	return nil
}

func Close(ctx context.Context, tx sqlx.ExecerContext, eventID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE events SET status = 'closed' WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("could not close event %s: %w", eventID, err)
	}

	return nil
}

func MarkCapacityAlertSent(ctx context.Context, tx sqlx.ExecerContext, eventID string) error {
	_, err := tx.ExecContext(ctx, `UPDATE events SET capacity_alert_sent = TRUE WHERE event_id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("could not mark capacity alert for event %s: %w", eventID, err)
	}

	return nil
}
