package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// DataLake keeps a copy of every external event, used as an audit log.
type DataLake struct {
	db *sqlx.DB
}

func NewDataLake(db *sqlx.DB) DataLake {
	if db == nil {
		panic("db is nil")
	}

	return DataLake{db: db}
}

func (s DataLake) StoreEvent(
	ctx context.Context,
	dataLakeEvent entity.DataLakeEvent,
) error {
	_, err := s.db.NamedExecContext(
		ctx,
		`
			INSERT INTO 
			    data_lake (event_id, published_at, event_name, event_payload) 
			VALUES 
			    (:event_id, :published_at, :event_name, :event_payload)`,
		dataLakeEvent,
	)
	var postgresError *pq.Error
	if errors.As(err, &postgresError) && postgresError.Code.Name() == "unique_violation" {
		// handling re-delivery
		return nil
	}
	if err != nil {
		return fmt.Errorf("could not store %s event in data lake: %w", dataLakeEvent.ID, err)
	}

	return nil
}

func (s DataLake) GetEvents(ctx context.Context) ([]entity.DataLakeEvent, error) {
	var events []entity.DataLakeEvent
	err := s.db.SelectContext(ctx, &events, "SELECT * FROM data_lake ORDER BY published_at ASC")
	if err != nil {
		return nil, fmt.Errorf("could not get events from data lake: %w", err)
	}

	return events, nil
}

func (s DataLake) GetEventsByName(ctx context.Context, name string) ([]entity.DataLakeEvent, error) {
	var events []entity.DataLakeEvent
	err := s.db.SelectContext(ctx, &events, "SELECT * FROM data_lake WHERE event_name = $1 ORDER BY published_at ASC", name)
	if err != nil {
		return nil, fmt.Errorf("could not get %s events from data lake: %w", name, err)
	}

	return events, nil
}
