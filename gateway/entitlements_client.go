package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/devkiraa/makeTicket-sub000/entity"
)

// EntitlementsClient checks plan features of an account.
// Answers are cached in redis for ttl; Invalidate drops them when the account's plan changes.
type EntitlementsClient struct {
	http  httpClient
	cache redis.Cmdable
	ttl   time.Duration
}

func NewEntitlementsClient(url string, cache redis.Cmdable, ttl time.Duration) EntitlementsClient {
	if url == "" {
		panic("missing entitlements url")
	}
	if cache == nil {
		panic("missing cache")
	}

	return EntitlementsClient{
		http:  newHTTPClient(url, 5*time.Second),
		cache: cache,
		ttl:   ttl,
	}
}

func entitlementCacheKey(accountID string, feature entity.Feature) string {
	return fmt.Sprintf("entitlements:%s:%s", accountID, feature)
}

func (c EntitlementsClient) CheckFeature(ctx context.Context, accountID string, feature entity.Feature) (entity.Entitlement, error) {
	key := entitlementCacheKey(accountID, feature)
	logger := log.FromContext(ctx).WithField("account_id", accountID).WithField("feature", feature)

	cached, err := c.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		var entitlement entity.Entitlement
		if err := json.Unmarshal([]byte(cached), &entitlement); err == nil {
			return entitlement, nil
		}
		logger.Warn("Ignoring malformed cached entitlement")
	case errors.Is(err, redis.Nil):
	default:
		logger.WithError(err).Warn("Entitlement cache unavailable")
	}

	var entitlement entity.Entitlement
	path := fmt.Sprintf("/accounts/%s/features/%s", url.PathEscape(accountID), url.PathEscape(string(feature)))

	status, err := c.http.doJSON(ctx, http.MethodGet, path, nil, &entitlement)
	if err != nil {
		return entity.Entitlement{}, fmt.Errorf("%w: entitlements: %w", entity.ErrExternalServiceUnavailable, err)
	}
	if status != http.StatusOK {
		return entity.Entitlement{}, fmt.Errorf("%w: entitlements returned %d", entity.ErrExternalServiceUnavailable, status)
	}

	payload, err := json.Marshal(entitlement)
	if err != nil {
		return entity.Entitlement{}, fmt.Errorf("could not marshal entitlement: %w", err)
	}
	if err := c.cache.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		logger.WithError(err).Warn("Could not cache entitlement")
	}

	return entitlement, nil
}

func (c EntitlementsClient) Invalidate(ctx context.Context, accountID string) error {
	keys := lo.Map(entity.AllFeatures, func(feature entity.Feature, _ int) string {
		return entitlementCacheKey(accountID, feature)
	})

	if err := c.cache.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("could not invalidate entitlements of %s: %w", accountID, err)
	}

	return nil
}
