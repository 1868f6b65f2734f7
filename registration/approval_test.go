package registration_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

var host = entity.Caller{AccountID: hostID, Role: entity.RoleHost}

func TestService_Approve(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) { e.ApprovalRequired = true })

	result, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
	require.NoError(t, err)
	require.Equal(t, entity.TicketStatusPending, result.Ticket.Status)

	_, err = f.service.Approve(context.Background(), result.Ticket.TicketID, entity.Caller{AccountID: "someone-else", Role: entity.RoleHost})
	assert.ErrorIs(t, err, entity.ErrNotAuthorized)

	approved, err := f.service.Approve(context.Background(), result.Ticket.TicketID, host)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusIssued, approved.Status)
	assert.True(t, approved.Approved)

	issued := 0
	for _, published := range f.store.publishedEvents() {
		if _, ok := published.(entity.TicketIssued_v1); ok {
			issued++
		}
	}
	assert.Equal(t, 1, issued)

	// approving again is a no-op
	_, err = f.service.Approve(context.Background(), result.Ticket.TicketID, entity.Caller{AccountID: "admin", Role: entity.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, f.store.publishedEvents(), 2)
}

func TestService_Approve_payment_pending(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) {
		e.ApprovalRequired = true
		e.Price = decimal.NewFromInt(200)
		e.PaymentConfig = entity.PaymentConfig{Enabled: true, RequireProof: true}
	})

	req := registerRequest(event.EventID, "ada@example.com")
	req.BearerToken = f.token(t, "acc-1")
	result, err := f.service.Register(context.Background(), req)
	require.NoError(t, err)

	approved, err := f.service.Approve(context.Background(), result.Ticket.TicketID, host)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, entity.TicketStatusPending, approved.Status)
}

func TestService_Reject(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, func(e *entity.Event) {
		e.Capacity = 1
		e.ApprovalRequired = true
		e.WaitlistEnabled = true
	})

	pending, err := f.service.Register(context.Background(), registerRequest(event.EventID, "first@example.com"))
	require.NoError(t, err)
	waitlisted, err := f.service.Register(context.Background(), registerRequest(event.EventID, "second@example.com"))
	require.NoError(t, err)
	require.True(t, waitlisted.Ticket.Waitlisted)

	queue, err := f.service.PendingTickets(context.Background(), event.EventID, host)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	_, err = f.service.PendingTickets(context.Background(), event.EventID, entity.Caller{AccountID: "guest"})
	assert.ErrorIs(t, err, entity.ErrNotAuthorized)

	require.NoError(t, f.service.Reject(context.Background(), waitlisted.Ticket.TicketID, host))
	stored, err := f.store.Get(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.ConfirmedCount, "waitlisted tickets never hold a slot")

	require.NoError(t, f.service.Reject(context.Background(), pending.Ticket.TicketID, host))
	stored, err = f.store.Get(context.Background(), event.EventID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.ConfirmedCount)
	assert.Empty(t, f.store.ticketsOf(event.EventID))
}

func TestService_Reject_issued_ticket(t *testing.T) {
	f := newFixture(t)
	event := f.addEvent(t, nil)

	result, err := f.service.Register(context.Background(), registerRequest(event.EventID, "ada@example.com"))
	require.NoError(t, err)

	err = f.service.Reject(context.Background(), result.Ticket.TicketID, host)
	assert.ErrorIs(t, err, entity.ErrTicketNotPending)
	assert.Len(t, f.store.ticketsOf(event.EventID), 1)
}
