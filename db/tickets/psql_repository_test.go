package tickets_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbutils "github.com/devkiraa/makeTicket-sub000/db"
	"github.com/devkiraa/makeTicket-sub000/db/events"
	"github.com/devkiraa/makeTicket-sub000/db/tickets"
	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/pubsub/outbox"
)

func TestMain(m *testing.M) {
	os.Exit(dbutils.RunWithPostgres(m))
}

func getDb(t *testing.T) *sqlx.DB {
	t.Helper()

	db := dbutils.GetDb(t)
	require.NoError(t, outbox.InitializeSchema(db, watermill.NopLogger{}))

	return db
}

func createEvent(t *testing.T, db *sqlx.DB, capacity int) entity.Event {
	t.Helper()

	event := entity.Event{
		EventID:   uuid.NewString(),
		HostID:    "host-" + uuid.NewString(),
		Title:     "Gopher meetup",
		Status:    entity.EventStatusActive,
		Capacity:  capacity,
		Price:     decimal.NewFromInt(100),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, events.NewPostgresRepository(db).Create(context.Background(), event))

	return event
}

func newTicket(t *testing.T, eventID string) entity.Ticket {
	t.Helper()

	scanCode, err := entity.NewScanCode()
	require.NoError(t, err)

	now := time.Now().UTC()
	return entity.Ticket{
		TicketID:      uuid.NewString(),
		EventID:       eventID,
		ScanCode:      scanCode,
		GuestName:     "Ada",
		GuestEmail:    uuid.NewString() + "@example.com",
		PaymentStatus: entity.PaymentStatusFree,
		Status:        entity.TicketStatusIssued,
		Approved:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func registerIssued(t *testing.T, repo tickets.PostgresRepository, eventID string) entity.Ticket {
	t.Helper()

	ticket, err := repo.Register(context.Background(), eventID, func(ctx context.Context, event entity.Event, tx entity.RegistrationTx) (entity.Ticket, []entity.BusEvent, error) {
		reservation, err := tx.ReserveSlot(ctx)
		if err != nil {
			return entity.Ticket{}, nil, err
		}
		if !reservation.Reserved {
			return entity.Ticket{}, nil, entity.ErrCapacityExceeded
		}

		return newTicket(t, eventID), nil, nil
	})
	require.NoError(t, err)

	return ticket
}

func TestPostgresRepository_Register_never_exceeds_capacity(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	const capacity = 10
	event := createEvent(t, db, capacity)

	var registered, rejected atomic.Int64
	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := repo.Register(ctx, event.EventID, func(ctx context.Context, e entity.Event, tx entity.RegistrationTx) (entity.Ticket, []entity.BusEvent, error) {
				reservation, err := tx.ReserveSlot(ctx)
				if err != nil {
					return entity.Ticket{}, nil, err
				}
				if !reservation.Reserved {
					return entity.Ticket{}, nil, entity.ErrCapacityExceeded
				}

				return newTicket(t, e.EventID), nil, nil
			})
			if err != nil {
				assert.ErrorIs(t, err, entity.ErrCapacityExceeded)
				rejected.Add(1)
				return
			}
			registered.Add(1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, capacity, registered.Load())
	assert.EqualValues(t, 100-capacity, rejected.Load())

	stored, err := events.NewPostgresRepository(db).Get(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, capacity, stored.ConfirmedCount)

	issued, err := repo.ListByEvent(ctx, event.EventID, []entity.TicketStatus{entity.TicketStatusIssued})
	require.NoError(t, err)
	assert.Len(t, issued, capacity)
}

func TestPostgresRepository_Register_failure_releases_reservation(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	event := createEvent(t, db, 1)

	_, err := repo.Register(ctx, event.EventID, func(ctx context.Context, e entity.Event, tx entity.RegistrationTx) (entity.Ticket, []entity.BusEvent, error) {
		reservation, err := tx.ReserveSlot(ctx)
		require.NoError(t, err)
		require.True(t, reservation.Reserved)

		return entity.Ticket{}, nil, entity.ErrAuthRequired
	})
	require.ErrorIs(t, err, entity.ErrAuthRequired)

	stored, err := events.NewPostgresRepository(db).Get(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConfirmedCount)
}

func TestPostgresRepository_Register_unknown_event(t *testing.T) {
	repo := tickets.NewPostgresRepository(getDb(t))

	_, err := repo.Register(context.Background(), uuid.NewString(), func(ctx context.Context, e entity.Event, tx entity.RegistrationTx) (entity.Ticket, []entity.BusEvent, error) {
		t.Fatal("decide must not be called for a missing event")
		return entity.Ticket{}, nil, nil
	})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPostgresRepository_CheckIn_succeeds_once(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	event := createEvent(t, db, 0)
	ticket := registerIssued(t, repo, event.EventID)

	var succeeded atomic.Int64
	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			ok, err := repo.CheckIn(ctx, ticket.TicketID, "scanner", time.Now().UTC())
			assert.NoError(t, err)
			if ok {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, succeeded.Load())

	stored, err := repo.Get(ctx, ticket.TicketID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusCheckedIn, stored.Status)
	assert.Equal(t, "scanner", stored.CheckedInBy)
	assert.NotNil(t, stored.CheckedInAt)
}

func TestPostgresRepository_FindByScanCode(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	event := createEvent(t, db, 0)
	ticket := registerIssued(t, repo, event.EventID)

	byFullCode, err := repo.FindByScanCode(ctx, ticket.ScanCode, false)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketID, byFullCode.TicketID)

	byShortCode, err := repo.FindByScanCode(ctx, ticket.ScanCode[:8], true)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketID, byShortCode.TicketID)

	_, err = repo.FindByScanCode(ctx, "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", false)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPostgresRepository_Delete_releases_slot(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	event := createEvent(t, db, 5)
	ticket := registerIssued(t, repo, event.EventID)

	err := repo.Delete(ctx, ticket.TicketID, func(ctx context.Context, ticket entity.Ticket, event entity.Event) (bool, []entity.BusEvent, error) {
		return !ticket.Waitlisted, []entity.BusEvent{entity.TicketRejected_v1{
			Header:   entity.NewEventHeader(),
			TicketID: ticket.TicketID,
			EventID:  event.EventID,
		}}, nil
	})
	require.NoError(t, err)

	_, err = repo.Get(ctx, ticket.TicketID)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	stored, err := events.NewPostgresRepository(db).Get(ctx, event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConfirmedCount)
}

func TestPostgresRepository_pending_proofs_and_utr_usage(t *testing.T) {
	ctx := context.Background()
	db := getDb(t)
	repo := tickets.NewPostgresRepository(db)

	event := createEvent(t, db, 0)
	utr := "UTR" + uuid.NewString()[:8]

	var ticketIDs []string
	for i := 0; i < 2; i++ {
		ticket := registerIssued(t, repo, event.EventID)
		ticketIDs = append(ticketIDs, ticket.TicketID)

		_, err := repo.Update(ctx, ticket.TicketID, func(ctx context.Context, ticket *entity.Ticket, event entity.Event) ([]entity.BusEvent, error) {
			ticket.Status = entity.TicketStatusPending
			ticket.PaymentStatus = entity.PaymentStatusPending
			ticket.PaymentProof = &entity.PaymentProof{
				UTR:                utr,
				ClaimedAmount:      decimal.NewFromInt(100),
				UploadedAt:         time.Now().UTC(),
				VerificationStatus: entity.VerificationStatusPending,
				VerificationMethod: entity.VerificationMethodNone,
			}
			return nil, nil
		})
		require.NoError(t, err)
	}

	filter := entity.PendingPaymentsFilter{HostID: event.HostID, RequireUTR: true}
	pending, err := repo.ListPendingProofs(ctx, filter)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, event.Title, pending[0].EventTitle)
	assert.True(t, pending[0].EventPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, utr, pending[0].Ticket.PaymentProof.UTR)

	count, err := repo.CountPendingProofs(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	usage, err := repo.UTRUsage(ctx, []string{utr}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, usage[utr])

	usage, err = repo.UTRUsage(ctx, []string{utr}, ticketIDs[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, usage[utr])

	otherHost, err := repo.ListPendingProofs(ctx, entity.PendingPaymentsFilter{HostID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, otherHost)
}
