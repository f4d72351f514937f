package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

var (
	ErrKeyNotFound     = errors.New("auth: jwks key not found")
	ErrJWKSFetchFailed = errors.New("auth: jwks fetch failed")
)

const defaultRefreshInterval = 15 * time.Minute

// JWKSCache fetches the identity provider's signing keys and keeps them for a refresh interval.
// An unknown kid forces an early refresh so rotated keys are picked up.
type JWKSCache struct {
	url             string
	client          *http.Client
	refreshInterval time.Duration
	logger          *zap.Logger
	now             func() time.Time

	mu     sync.RWMutex
	keys   map[string]jose.JSONWebKey
	expiry time.Time

	refreshMu sync.Mutex
}

func NewJWKSCache(url string, client *http.Client, refreshInterval time.Duration, logger *zap.Logger) *JWKSCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if refreshInterval <= 0 {
		refreshInterval = defaultRefreshInterval
	}
	return &JWKSCache{
		url:             url,
		client:          client,
		refreshInterval: refreshInterval,
		logger:          logger,
		now:             time.Now,
	}
}

// Keyfunc resolves RS256 verification keys by the token's kid header.
func (c *JWKSCache) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("auth: token missing kid header")
		}
		return c.Key(ctx, kid)
	}
}

func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	if c.expired() {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
	}

	if key, ok := c.cachedKey(kid); ok {
		return key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := c.cachedKey(kid); ok {
		return key, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, kid)
}

func (c *JWKSCache) cachedKey(kid string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	jwk, ok := c.keys[kid]
	if !ok {
		return nil, false
	}
	return jwk.Key, true
}

func (c *JWKSCache) expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys) == 0 || !c.now().Before(c.expiry)
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("%w: decode jwks: %v", ErrJWKSFetchFailed, err)
	}

	keys := make(map[string]jose.JSONWebKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.KeyID == "" || !jwk.Valid() {
			continue
		}
		keys[jwk.KeyID] = jwk
	}
	if len(keys) == 0 {
		return fmt.Errorf("%w: empty key set", ErrJWKSFetchFailed)
	}

	c.mu.Lock()
	c.keys = keys
	c.expiry = c.now().Add(c.refreshInterval)
	c.mu.Unlock()

	c.logger.Info("jwks refreshed", zap.Int("keyCount", len(keys)))
	return nil
}
