package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devkiraa/makeTicket-sub000/entity"
	"github.com/devkiraa/makeTicket-sub000/metrics"
)

// MatcherClient asks the external statement matcher whether a transaction appears in a bank statement.
type MatcherClient struct {
	http    httpClient
	timeout time.Duration
}

func NewMatcherClient(url string, timeout time.Duration) MatcherClient {
	if url == "" {
		panic("missing statement matcher url")
	}
	if timeout <= 0 {
		panic("statement matcher timeout must be positive")
	}

	return MatcherClient{
		http:    newHTTPClient(url, timeout),
		timeout: timeout,
	}
}

type matchRequest struct {
	UTR           string      `json:"utr"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date"`
	StatementText string      `json:"statementText"`
}

func (c MatcherClient) Match(ctx context.Context, request entity.MatchRequest) (result entity.MatchResult, err error) {
	start := time.Now()
	defer func() {
		outcome := string(result.Status)
		if err != nil {
			outcome = "error"
		}
		metrics.MatcherRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body := matchRequest{
		UTR:           request.UTR,
		Amount:        json.Number(request.Amount.String()),
		Date:          request.Date,
		StatementText: request.StatementText,
	}

	status, err := c.http.doJSON(ctx, http.MethodPost, "", body, &result)
	if err != nil {
		return entity.MatchResult{}, fmt.Errorf("%w: statement matcher: %w", entity.ErrExternalServiceUnavailable, err)
	}
	if status != http.StatusOK {
		return entity.MatchResult{}, fmt.Errorf("%w: statement matcher returned %d", entity.ErrExternalServiceUnavailable, status)
	}

	switch result.Status {
	case entity.MatchStatusVerified, entity.MatchStatusNotFound, entity.MatchStatusNeedsManualReview:
		return result, nil
	default:
		return entity.MatchResult{}, fmt.Errorf("%w: statement matcher returned unknown status %q", entity.ErrExternalServiceUnavailable, result.Status)
	}
}
