package gateway

import (
	"context"
	"sync"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// EntitlementsMock allows everything unless a feature is listed in Denied.
type EntitlementsMock struct {
	lock sync.Mutex

	Denied      map[entity.Feature]string
	Err         error
	Invalidated []string
}

func (c *EntitlementsMock) CheckFeature(ctx context.Context, accountID string, feature entity.Feature) (entity.Entitlement, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.Err != nil {
		return entity.Entitlement{}, c.Err
	}
	if reason, ok := c.Denied[feature]; ok {
		return entity.Entitlement{Allowed: false, Reason: reason}, nil
	}

	return entity.Entitlement{Allowed: true}, nil
}

func (c *EntitlementsMock) Invalidate(ctx context.Context, accountID string) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.Invalidated = append(c.Invalidated, accountID)

	return nil
}
