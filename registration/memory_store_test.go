package registration_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// memoryStore keeps events and tickets behind one lock, which stands in for the event row lock.
type memoryStore struct {
	lock sync.Mutex

	events    map[string]entity.Event
	tickets   map[string]entity.Ticket
	published []entity.BusEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:  map[string]entity.Event{},
		tickets: map[string]entity.Ticket{},
	}
}

func (m *memoryStore) Create(ctx context.Context, event entity.Event) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.events[event.EventID] = event
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (entity.Event, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	event, ok := m.events[id]
	if !ok {
		return entity.Event{}, fmt.Errorf("event %s: %w", id, entity.ErrNotFound)
	}
	return event, nil
}

func (m *memoryStore) CloseIfFull(ctx context.Context, eventID string, waitlistAllowed bool) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	event := m.events[eventID]
	if event.IsFull() && !(event.WaitlistEnabled && waitlistAllowed) {
		event.Status = entity.EventStatusClosed
		m.events[eventID] = event
	}
	return nil
}

type memoryTickets struct {
	*memoryStore
}

func (m memoryTickets) Register(ctx context.Context, eventID string, decide entity.RegistrationFunc) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}

	tx := &memoryTx{store: m.memoryStore, event: event}
	ticket, busEvents, err := decide(ctx, event, tx)
	if err != nil {
		return entity.Ticket{}, err
	}

	m.events[eventID] = tx.event
	m.tickets[ticket.TicketID] = ticket
	m.published = append(m.published, busEvents...)

	return ticket, nil
}

func (m memoryTickets) Get(ctx context.Context, ticketID string) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ticket, ok := m.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}
	return ticket, nil
}

func (m memoryTickets) Update(ctx context.Context, ticketID string, update entity.TicketUpdateFunc) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ticket, ok := m.tickets[ticketID]
	if !ok {
		return entity.Ticket{}, entity.ErrNotFound
	}

	busEvents, err := update(ctx, &ticket, m.events[ticket.EventID])
	if err != nil {
		return entity.Ticket{}, err
	}

	m.tickets[ticketID] = ticket
	m.published = append(m.published, busEvents...)

	return ticket, nil
}

func (m memoryTickets) Delete(ctx context.Context, ticketID string, validate entity.TicketDeleteFunc) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	ticket, ok := m.tickets[ticketID]
	if !ok {
		return entity.ErrNotFound
	}
	event := m.events[ticket.EventID]

	release, busEvents, err := validate(ctx, ticket, event)
	if err != nil {
		return err
	}

	delete(m.tickets, ticketID)
	if release {
		event.ConfirmedCount--
		m.events[event.EventID] = event
	}
	m.published = append(m.published, busEvents...)

	return nil
}

func (m memoryTickets) CheckIn(ctx context.Context, ticketID string, scannerID string, at time.Time) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	ticket := m.tickets[ticketID]
	if ticket.Status != entity.TicketStatusIssued {
		return false, nil
	}

	ticket.Status = entity.TicketStatusCheckedIn
	ticket.CheckedInAt = &at
	ticket.CheckedInBy = scannerID
	m.tickets[ticketID] = ticket

	return true, nil
}

func (m memoryTickets) FindByScanCode(ctx context.Context, code string, prefix bool) (entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var found []entity.Ticket
	for _, t := range m.tickets {
		if t.ScanCode == code || (prefix && strings.HasPrefix(t.ScanCode, code)) {
			found = append(found, t)
		}
	}

	switch len(found) {
	case 0:
		return entity.Ticket{}, entity.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return entity.Ticket{}, entity.NewValidationError("ambiguous short code")
	}
}

func (m memoryTickets) FindByEventAndEmail(ctx context.Context, eventID string, email string) ([]entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var found []entity.Ticket
	for _, t := range m.tickets {
		if t.EventID == eventID && t.GuestEmail == email {
			found = append(found, t)
		}
	}
	return found, nil
}

func (m memoryTickets) ListByEvent(ctx context.Context, eventID string, statuses []entity.TicketStatus) ([]entity.Ticket, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	var found []entity.Ticket
	for _, t := range m.tickets {
		if t.EventID != eventID {
			continue
		}
		for _, s := range statuses {
			if t.Status == s {
				found = append(found, t)
			}
		}
	}
	return found, nil
}

func (m *memoryStore) ticketsOf(eventID string) []entity.Ticket {
	m.lock.Lock()
	defer m.lock.Unlock()

	var found []entity.Ticket
	for _, t := range m.tickets {
		if t.EventID == eventID {
			found = append(found, t)
		}
	}
	return found
}

func (m *memoryStore) publishedEvents() []entity.BusEvent {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]entity.BusEvent(nil), m.published...)
}

// memoryTx is called with the store lock held.
type memoryTx struct {
	store *memoryStore
	event entity.Event
}

func (t *memoryTx) HasRegistration(ctx context.Context, email string) (bool, error) {
	for _, ticket := range t.store.tickets {
		if ticket.EventID == t.event.EventID && ticket.GuestEmail == email {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) ReserveSlot(ctx context.Context) (entity.SlotReservation, error) {
	if t.event.Capacity > 0 && t.event.ConfirmedCount >= t.event.Capacity {
		return entity.SlotReservation{Reserved: false, ConfirmedCount: t.event.ConfirmedCount}, nil
	}

	t.event.ConfirmedCount++
	return entity.SlotReservation{Reserved: true, ConfirmedCount: t.event.ConfirmedCount}, nil
}

func (t *memoryTx) CloseEvent(ctx context.Context) error {
	t.event.Status = entity.EventStatusClosed
	return nil
}

func (t *memoryTx) MarkCapacityAlertSent(ctx context.Context) error {
	t.event.CapacityAlertSent = true
	return nil
}
