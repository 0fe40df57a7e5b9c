package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"
)

// Token lifetime as stated by the issuer, and the margin by which cached
// tokens are dropped early.
const (
	DefaultTokenValidity = 10 * time.Minute
	DefaultTokenMargin   = time.Minute
)

// TokenIssuer performs the network exchange of an API key for a token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, apiKey, region string) (string, error)
}

// CachedToken is a token with the region it was issued for and the instant
// it stops being usable.
type CachedToken struct {
	Token     string
	Region    string
	ExpiresAt time.Time
}

// Usable reports whether the token may serve a request for region at now.
func (t CachedToken) Usable(region string, now time.Time) bool {
	return t.Region == region && now.Before(t.ExpiresAt)
}

// TokenCache holds at most one token. Storing a token replaces the previous
// one regardless of region.
type TokenCache struct {
	mu    sync.Mutex
	entry mo.Option[CachedToken]
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{entry: mo.None[CachedToken]()}
}

// Lookup returns the cached token when it is usable for region at now.
func (c *TokenCache) Lookup(region string, now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entry.Get()
	if !ok || !entry.Usable(region, now) {
		return "", false
	}

	return entry.Token, true
}

// Store replaces the cached token.
func (c *TokenCache) Store(token CachedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entry = mo.Some(token)
}

// Entry returns the cached token, usable or not.
func (c *TokenCache) Entry() (CachedToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entry.Get()
}

// discardOtherRegion drops the entry if it belongs to a different region.
func (c *TokenCache) discardOtherRegion(region string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entry.Get(); ok && entry.Region != region {
		c.entry = mo.None[CachedToken]()
	}
}

// TokenProvider hands out bearer tokens, reusing a cached one while it is
// within its lifetime minus the safety margin.
type TokenProvider struct {
	issuer   TokenIssuer
	cache    *TokenCache
	validity time.Duration
	margin   time.Duration
	now      func() time.Time
}

// TokenProviderOption customizes a TokenProvider.
type TokenProviderOption func(*TokenProvider)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenProviderOption {
	return func(p *TokenProvider) {
		p.now = now
	}
}

// WithCache shares an existing cache.
func WithCache(cache *TokenCache) TokenProviderOption {
	return func(p *TokenProvider) {
		p.cache = cache
	}
}

// WithLifetime overrides the issuer-stated validity and the safety margin.
// Non-positive values keep the defaults.
func WithLifetime(validity, margin time.Duration) TokenProviderOption {
	return func(p *TokenProvider) {
		if validity > 0 {
			p.validity = validity
		}

		if margin > 0 {
			p.margin = margin
		}
	}
}

// NewTokenProvider creates a provider that fetches tokens through issuer.
func NewTokenProvider(issuer TokenIssuer, opts ...TokenProviderOption) *TokenProvider {
	provider := &TokenProvider{
		issuer:   issuer,
		cache:    NewTokenCache(),
		validity: DefaultTokenValidity,
		margin:   DefaultTokenMargin,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Cache exposes the provider's cache.
func (p *TokenProvider) Cache() *TokenCache {
	return p.cache
}

// GetToken returns a bearer token for region. A cached token is returned
// without a network call while it is usable; otherwise a new one is issued
// and replaces the cache entry. Failures are returned immediately.
func (p *TokenProvider) GetToken(ctx context.Context, apiKey, region string) (string, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(region) == "" {
		return "", newConfigError(apiKey, region)
	}

	issuedAt := p.now()

	token, ok := p.cache.Lookup(region, issuedAt)
	if ok {
		return token, nil
	}

	p.cache.discardOtherRegion(region)

	token, err := p.issuer.IssueToken(ctx, apiKey, region)
	if err != nil {
		return "", err
	}

	p.cache.Store(CachedToken{
		Token:     token,
		Region:    region,
		ExpiresAt: issuedAt.Add(p.validity - p.margin),
	})

	return token, nil
}
