package gateway

import (
	"context"
	"sync"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// MatcherMock answers with Results keyed by UTR, and NEEDS_MANUAL_REVIEW for unknown ones.
type MatcherMock struct {
	lock sync.Mutex

	Results map[string]entity.MatchResult
	Errors  map[string]error
	Calls   []entity.MatchRequest
}

func (c *MatcherMock) Match(ctx context.Context, request entity.MatchRequest) (entity.MatchResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.Calls = append(c.Calls, request)

	if err, ok := c.Errors[request.UTR]; ok {
		return entity.MatchResult{}, err
	}
	if result, ok := c.Results[request.UTR]; ok {
		return result, nil
	}

	return entity.MatchResult{Status: entity.MatchStatusNeedsManualReview}, nil
}

func (c *MatcherMock) CallsCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	return len(c.Calls)
}
