package auth

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// CachingVerifier reuses successful verifications for a short TTL.
// Failures are never cached, so a rejected token is re-checked every time.
type CachingVerifier struct {
	next  Verifier
	cache *ttlcache.Cache[string, Principal]
}

// NewCachingVerifier wraps next with a cache keyed by the Authorization header.
// Call Stop to release the expiry goroutine.
func NewCachingVerifier(next Verifier, ttl time.Duration) *CachingVerifier {
	cache := ttlcache.New[string, Principal](
		ttlcache.WithTTL[string, Principal](ttl),
		ttlcache.WithDisableTouchOnHit[string, Principal](),
	)
	go cache.Start()

	return &CachingVerifier{
		next:  next,
		cache: cache,
	}
}

// Verify returns a cached principal or asks the wrapped verifier.
func (v *CachingVerifier) Verify(ctx context.Context, authorization string) (Principal, error) {
	if item := v.cache.Get(authorization); item != nil {
		return item.Value(), nil
	}

	p, err := v.next.Verify(ctx, authorization)
	if err != nil {
		return Principal{}, err
	}

	// The key outlives the call, so it must not share memory with the caller.
	v.cache.Set(strings.Clone(authorization), p, ttlcache.DefaultTTL)
	return p, nil
}

// Stop halts cache expiry.
func (v *CachingVerifier) Stop() {
	v.cache.Stop()
}
