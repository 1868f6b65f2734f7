package payment_test

import (
	"context"
	"sort"
	"sync"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type memoryStore struct {
	lock sync.Mutex

	events    map[string]entity.Event
	tickets   map[string]entity.Ticket
	published []entity.BusEvent

	// failUpdates makes Update fail for the listed tickets
	failUpdates map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:      map[string]entity.Event{},
		tickets:     map[string]entity.Ticket{},
		failUpdates: map[string]error{},
	}
}

type memoryEvents struct {
	*memoryStore
}

func (m memoryEvents) Get(ctx context.Context, eventID string) (entity.Event, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return entity.Event{}, entity.ErrNotFound
	}
	return event, nil
}

func (m *memoryStore) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ticket, ok := m.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}
	return copyTicket(ticket), nil
}

func (m *memoryStore) Update(ctx context.Context, ticketID string, update entity.TicketUpdateFunc) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if err := m.failUpdates[ticketID]; err != nil {
		return entity.Ticket{}, err
	}

	stored, ok := m.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}
	ticket := copyTicket(stored)

	busEvents, err := update(ctx, &ticket, m.events[ticket.EventID])
	if err != nil {
		return entity.Ticket{}, err
	}

	m.tickets[ticketID] = ticket
	m.published = append(m.published, busEvents...)

	return copyTicket(ticket), nil
}

func (m *memoryStore) pending(filter entity.PendingPaymentsFilter) []entity.PendingPayment {
	var found []entity.PendingPayment
	for _, t := range m.tickets {
		event := m.events[t.EventID]
		if !t.HasPendingProof() {
			continue
		}
		if filter.HostID != "" && event.HostID != filter.HostID {
			continue
		}
		if filter.RequireUTR && t.PaymentProof.UTR == "" {
			continue
		}
		found = append(found, entity.PendingPayment{
			Ticket:     copyTicket(t),
			EventTitle: event.Title,
			EventPrice: event.Price,
			HostID:     event.HostID,
		})
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].Ticket.TicketID < found[j].Ticket.TicketID
	})

	return found
}

func (m *memoryStore) ListPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) ([]entity.PendingPayment, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	found := m.pending(filter)
	if filter.Offset >= len(found) {
		return nil, nil
	}
	found = found[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(found) {
		found = found[:filter.Limit]
	}
	return found, nil
}

func (m *memoryStore) CountPendingProofs(ctx context.Context, filter entity.PendingPaymentsFilter) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.pending(filter)), nil
}

func (m *memoryStore) UTRUsage(ctx context.Context, utrs []string, excludeTicketIDs []string) (map[string]int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	excluded := map[string]bool{}
	for _, id := range excludeTicketIDs {
		excluded[id] = true
	}
	wanted := map[string]bool{}
	for _, utr := range utrs {
		wanted[utr] = true
	}

	usage := map[string]int{}
	for _, t := range m.tickets {
		if excluded[t.TicketID] || t.PaymentProof == nil || !wanted[t.PaymentProof.UTR] {
			continue
		}
		switch t.PaymentProof.VerificationStatus {
		case entity.VerificationStatusPending, entity.VerificationStatusVerified:
			usage[t.PaymentProof.UTR]++
		}
	}
	return usage, nil
}

func (m *memoryStore) ticket(id string) entity.Ticket {
	m.lock.Lock()
	defer m.lock.Unlock()

	return copyTicket(m.tickets[id])
}

func (m *memoryStore) publishedEvents() []entity.BusEvent {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]entity.BusEvent(nil), m.published...)
}

func copyTicket(t entity.Ticket) entity.Ticket {
	if t.PaymentProof != nil {
		proof := *t.PaymentProof
		t.PaymentProof = &proof
	}
	return t
}
