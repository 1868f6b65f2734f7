package registration_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub000/auth"
	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/gateway"
	"github.com/devkiraa/makeTicket-sub000/registration"
)

const hostID = "host-1"

type fixture struct {
	service      *registration.Service
	store        *memoryStore
	entitlements *gateway.EntitlementsMock
	validator    auth.Validator
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	store := newMemoryStore()
	entitlements := &gateway.EntitlementsMock{}
	validator := auth.NewValidator("test-secret")

	return fixture{
		service:      registration.NewService(store, memoryTickets{store}, entitlements, validator),
		store:        store,
		entitlements: entitlements,
		validator:    validator,
	}
}

func (f fixture) addEvent(t *testing.T, configure func(e *entity.Event)) entity.Event {
	t.Helper()

	event := entity.Event{
		EventID: uuid.NewString(),
		HostID:  hostID,
		Title:   "Go meetup",
		Status:  entity.EventStatusActive,
		FormSchema: entity.AssignFormRoles(entity.FormSchema{Fields: []entity.FormField{
			{ID: "f1", Label: "Full name", Type: "text", Required: true},
			{ID: "f2", Label: "Email address", Type: "email", Required: true},
		}}),
	}
	if configure != nil {
		configure(&event)
	}

	require.NoError(t, f.store.Create(context.Background(), event))
	return event
}

func (f fixture) token(t *testing.T, accountID string) string {
	t.Helper()

	token, err := f.validator.Issue(entity.Caller{AccountID: accountID, Role: entity.RoleGuest}, time.Hour)
	require.NoError(t, err)
	return token
}

func registerRequest(eventID string, email string) registration.RegisterRequest {
	return registration.RegisterRequest{
		EventID:       eventID,
		FormResponses: entity.FormResponses{"f1": "Ada Lovelace", "f2": email},
	}
}

func TestService_Register_free_event(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	result, err := f.service.Register(context.Background(), registerRequest(event.EventID, " Ada@Example.com "))
	require.NoError(t, err)

	assert.True(t, result.Confirmed())
	assert.Equal(t, entity.TicketStatusIssued, result.Ticket.Status)
	assert.Equal(t, entity.PaymentStatusFree, result.Ticket.PaymentStatus)
	assert.Equal(t, "ada@example.com", result.Ticket.GuestEmail)
	assert.Equal(t, "Ada Lovelace", result.Ticket.GuestName)
	assert.True(t, result.Ticket.Approved)
	assert.Len(t, result.Ticket.ScanCode, 64)

	published := f.store.publishedEvents()
	require.Len(t, published, 2)
	assert.IsType(t, entity.TicketRegistered_v1{}, published[0])
	assert.IsType(t, entity.TicketIssued_v1{}, published[1])
}

func TestService_Register_duplicate_email(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), registerRequest(event.EventID, "ADA@example.com"))
	assert.ErrorIs(t, err, entity.ErrDuplicateRegistration)

	multi := f.addEvent(t, func(e *entity.Event) { e.AllowMultipleRegistrations = true })
	for i := 0; i < 2; i++ {
		_, err = f.service.Register(context.Background(), registerRequest(multi.EventID, "ada@example.com"))
		require.NoError(t, err)
	}
	assert.Len(t, f.store.ticketsOf(multi.EventID), 2)
}

func TestService_Register_explicit_email_wins(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	req := registerRequest(event.EventID, "form@example.com")
	req.Email = "Explicit@Example.com"

	result, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "explicit@example.com", result.Ticket.GuestEmail)
}

func TestService_Register_validation(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	_, err := f.service.Register(context.Background(), registration.RegisterRequest{
		EventID:       event.EventID,
		FormResponses: entity.FormResponses{"f1": "Ada"},
	})
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.service.Register(context.Background(), registerRequest(event.EventID, "not-an-email"))
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.service.Register(context.Background(), registerRequest(uuid.NewString(), "ada@example.com"))
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestService_Register_closed_states(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	testCases := []struct {
		Name      string
		Configure func(e *entity.Event)
		Err       error
	}{
		{Name: "closed", Configure: func(e *entity.Event) { e.Status = entity.EventStatusClosed }, Err: entity.ErrRegistrationClosed},
		{Name: "draft", Configure: func(e *entity.Event) { e.Status = entity.EventStatusDraft }, Err: entity.ErrRegistrationClosed},
		{Name: "paused", Configure: func(e *entity.Event) { e.RegistrationPaused = true }, Err: entity.ErrRegistrationPaused},
		{Name: "close_time_passed", Configure: func(e *entity.Event) { e.RegistrationCloseTime = &past }, Err: entity.ErrRegistrationClosed},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			f := newFixture(t)
			event := f.addEvent(t, tc.Configure)

			_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
			assert.ErrorIs(t, err, tc.Err)
			assert.Empty(t, f.store.ticketsOf(event.EventID))
		})
	}
}

func TestService_Register_capacity_closes_event(t *testing.T) {
	for _, approvalRequired := range []bool{false, true} {
		t.Run(fmt.Sprintf("approval_required_%t", approvalRequired), func(t *testing.T) {
			f := newFixture(t)
			event := f.addEvent(t, func(e *entity.Event) {
				e.Capacity = 2
				e.ApprovalRequired = approvalRequired
			})

			errs := make(chan error, 3)
			wg := sync.WaitGroup{}
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := f.service.Register(context.Background(), registerRequest(event.EventID, fmt.Sprintf("guest%d@example.com", i)))
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)

			var failed []error
			for err := range errs {
				if err != nil {
					failed = append(failed, err)
				}
			}
			require.Len(t, failed, 1)
			assert.ErrorIs(t, failed[0], entity.ErrCapacityExceeded)

			expectedStatus := entity.TicketStatusIssued
			if approvalRequired {
				expectedStatus = entity.TicketStatusPending
			}
			tickets := f.store.ticketsOf(event.EventID)
			require.Len(t, tickets, 2)
			for _, ticket := range tickets {
				assert.Equal(t, expectedStatus, ticket.Status)
			}

			stored, err := f.store.Get(context.Background(), event.EventID)
			require.NoError(t, err)
			assert.Equal(t, entity.EventStatusClosed, stored.Status)
			assert.Equal(t, 2, stored.ConfirmedCount)
		})
	}
}

func TestService_Register_waitlist(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) {
		e.Capacity = 1
		e.WaitlistEnabled = true
	})

	first, err := f.service.Register(context.Background(), registerRequest(event.EventID, "first@example.com"))
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusIssued, first.Ticket.Status)

	second, err := f.service.Register(context.Background(), registerRequest(event.EventID, "second@example.com"))
	require.NoError(t, err)
	assert.Equal(t, registration.OutcomeWaitlisted, second.Outcome)
	assert.Equal(t, entity.TicketStatusWaitlisted, second.Ticket.Status)
	assert.True(t, second.Ticket.Waitlisted)
	assert.False(t, second.Confirmed())

	stored, err := f.store.Get(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatusActive, stored.Status)
	assert.Equal(t, 1, stored.ConfirmedCount)
}

func TestService_Register_waitlist_not_on_plan(t *testing.T) {
	f := newFixture(t)
	f.entitlements.Denied = map[entity.Feature]string{entity.FeatureWaitlist: "free plan"}
	event := f.addEvent(t, func(e *entity.Event) {
		e.Capacity = 1
		e.WaitlistEnabled = true
	})

	_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "first@example.com"))
	require.NoError(t, err)

	_, err = f.service.Register(context.Background(), registerRequest(event.EventID, "second@example.com"))
	assert.ErrorIs(t, err, entity.ErrCapacityExceeded)

	stored, err := f.store.Get(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatusClosed, stored.Status)
}

func TestService_Register_full_event_closes_after_plan_downgrade(t *testing.T) {
	f := newFixture(t)
	// filled while the plan still covered waitlists
	event := f.addEvent(t, func(e *entity.Event) {
		e.Capacity = 2
		e.ConfirmedCount = 2
		e.WaitlistEnabled = true
	})
	f.entitlements.Denied = map[entity.Feature]string{entity.FeatureWaitlist: "free plan"}

	_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "late@example.com"))
	assert.ErrorIs(t, err, entity.ErrCapacityExceeded)

	stored, err := f.store.Get(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatusClosed, stored.Status)
	assert.Equal(t, 2, stored.ConfirmedCount)
	assert.Empty(t, f.store.ticketsOf(event.EventID))

	_, err = f.service.Register(context.Background(), registerRequest(event.EventID, "later@example.com"))
	assert.ErrorIs(t, err, entity.ErrCapacityExceeded)
}

func TestService_Register_never_exceeds_capacity(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) { e.Capacity = 10 })

	wg := sync.WaitGroup{}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.service.Register(context.Background(), registerRequest(event.EventID, fmt.Sprintf("guest%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	assert.Len(t, f.store.ticketsOf(event.EventID), 10)
}

func TestService_Register_entitlements(t *testing.T) {
	t.Run("attendees_denied", func(t *testing.T) {
		f := newFixture(t)
		f.entitlements.Denied = map[entity.Feature]string{entity.FeatureAttendees: "attendee limit reached"}
		event := f.addEvent(t, nil)

		_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))

		var notEntitled entity.NotEntitledError
		require.True(t, errors.As(err, &notEntitled))
		assert.Equal(t, entity.FeatureAttendees, notEntitled.Feature)
	})

	t.Run("service_down", func(t *testing.T) {
		f := newFixture(t)
		f.entitlements.Err = entity.ErrExternalServiceUnavailable
		event := f.addEvent(t, nil)

		_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
		assert.ErrorIs(t, err, entity.ErrExternalServiceUnavailable)
	})
}

func TestService_Register_paid_event(t *testing.T) {
	price := decimal.NewFromInt(500)

	t.Run("requires_credential", func(t *testing.T) {
		f := newFixture(t)
		event := f.addEvent(t, func(e *entity.Event) {
			e.Price = price
			e.Capacity = 5
		})

		_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
		assert.ErrorIs(t, err, entity.ErrAuthRequired)

		req := registerRequest(event.EventID, "ada@example.com")
		req.BearerToken = "Bearer garbage"
		_, err = f.service.Register(context.Background(), req)
		assert.ErrorIs(t, err, entity.ErrInvalidCredential)

		stored, err := f.store.Get(context.Background(), event.EventID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.ConfirmedCount, "failed auth must not keep the reservation")
	})

	t.Run("paid_without_proof", func(t *testing.T) {
		f := newFixture(t)
		event := f.addEvent(t, func(e *entity.Event) { e.Price = price })

		req := registerRequest(event.EventID, "ada@example.com")
		req.BearerToken = "Bearer " + f.token(t, "acc-1")

		result, err := f.service.Register(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, entity.TicketStatusIssued, result.Ticket.Status)
		assert.Equal(t, entity.PaymentStatusCompleted, result.Ticket.PaymentStatus)
		assert.True(t, price.Equal(result.Ticket.PricePaid))
		assert.Equal(t, "acc-1", result.Ticket.UserID)
	})

	t.Run("proof_required", func(t *testing.T) {
		f := newFixture(t)
		event := f.addEvent(t, func(e *entity.Event) {
			e.Price = price
			e.PaymentConfig = entity.PaymentConfig{Enabled: true, RequireProof: true}
		})

		req := registerRequest(event.EventID, "ada@example.com")
		req.BearerToken = f.token(t, "acc-1")

		result, err := f.service.Register(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, registration.OutcomePendingPayment, result.Outcome)
		assert.Equal(t, entity.TicketStatusPending, result.Ticket.Status)
		assert.Equal(t, entity.PaymentStatusPending, result.Ticket.PaymentStatus)

		for _, published := range f.store.publishedEvents() {
			assert.IsType(t, entity.TicketRegistered_v1{}, published, "no confirmation before payment is verified")
		}
	})

	t.Run("paid_events_not_on_plan", func(t *testing.T) {
		f := newFixture(t)
		f.entitlements.Denied = map[entity.Feature]string{entity.FeaturePaidEvents: "upgrade"}
		event := f.addEvent(t, func(e *entity.Event) { e.Price = price })

		_, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
		assert.ErrorIs(t, err, entity.ErrNotEntitled)
	})
}

func TestService_Register_capacity_alert_once(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) {
		e.Capacity = 10
		e.WaitlistEnabled = true
	})

	for i := 0; i < 10; i++ {
		_, err := f.service.Register(context.Background(), registerRequest(event.EventID, fmt.Sprintf("guest%d@example.com", i)))
		require.NoError(t, err)
	}

	var alerts []entity.EventCapacityAlert_v1
	for _, published := range f.store.publishedEvents() {
		if alert, ok := published.(entity.EventCapacityAlert_v1); ok {
			alerts = append(alerts, alert)
		}
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, 9, alerts[0].ConfirmedCount)
}

func TestService_CheckRegistration(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	status, err := f.service.CheckRegistration(context.Background(), event.EventID, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, status.Registered)

	result, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
	require.NoError(t, err)

	status, err = f.service.CheckRegistration(context.Background(), event.EventID, "ADA@example.com")
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, result.Ticket.TicketID, status.TicketID)
	assert.Equal(t, entity.TicketStatusIssued, status.Status)
}

func TestService_CreateEvent(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CreateEvent(context.Background(), entity.Caller{AccountID: "g", Role: entity.RoleGuest}, entity.Event{Title: "x"})
	assert.ErrorIs(t, err, entity.ErrNotAuthorized)

	_, err = f.service.CreateEvent(context.Background(), entity.Caller{AccountID: hostID, Role: entity.RoleHost}, entity.Event{Title: "x", Capacity: -1})
	assert.ErrorIs(t, err, entity.ErrValidation)

	event, err := f.service.CreateEvent(context.Background(), entity.Caller{AccountID: hostID, Role: entity.RoleHost}, entity.Event{
		Title:    "Go meetup",
		Capacity: 50,
		FormSchema: entity.FormSchema{Fields: []entity.FormField{
			{ID: "a", Label: "Your name", Type: "text"},
			{ID: "b", Label: "Contact", Type: "email"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, hostID, event.HostID)
	assert.Equal(t, entity.EventStatusActive, event.Status)
	assert.Equal(t, entity.FieldRoleName, event.FormSchema.Fields[0].Role)
	assert.Equal(t, entity.FieldRoleEmail, event.FormSchema.Fields[1].Role)

	_, err = f.store.Get(context.Background(), event.EventID)
	assert.NoError(t, err)
}
