package gateway

import (
	"context"
	"sync"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

type NotificationsMock struct {
	lock sync.Mutex

	Confirmations     map[string]entity.TicketConfirmation
	HostNotifications map[string]entity.HostNotification
}

func (c *NotificationsMock) SendTicketConfirmation(ctx context.Context, confirmation entity.TicketConfirmation) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Confirmations == nil {
		c.Confirmations = make(map[string]entity.TicketConfirmation)
	}

	c.Confirmations[confirmation.TicketID] = confirmation

	return nil
}

func (c *NotificationsMock) NotifyHost(ctx context.Context, notification entity.HostNotification) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.HostNotifications == nil {
		c.HostNotifications = make(map[string]entity.HostNotification)
	}

	c.HostNotifications[notification.IdempotencyKey] = notification

	return nil
}

func (c *NotificationsMock) Confirmation(ticketID string) (entity.TicketConfirmation, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	confirmation, ok := c.Confirmations[ticketID]
	return confirmation, ok
}

func (c *NotificationsMock) HostNotificationsFor(eventID string) []entity.HostNotification {
	c.lock.Lock()
	defer c.lock.Unlock()

	var found []entity.HostNotification
	for _, n := range c.HostNotifications {
		if n.EventID == eventID {
			found = append(found, n)
		}
	}

	return found
}
