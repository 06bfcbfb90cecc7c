package relay

import (
	"context"

	lru "github.com/hashicorp/golang-lru"

	"encryptednumbers/internal/engcrypto"
	"encryptednumbers/internal/metrics"
)

// cachingLedger keeps recently used ciphertexts and positive ACL answers.
// Both are safe to cache: ciphertexts never change and grants are never
// revoked. Negative ACL answers and account keys always go to the ledger.
type cachingLedger struct {
	Ledger

	ciphertexts *lru.ARCCache
	grants      *lru.ARCCache
	metrics     *metrics.Metrics
}

func newCachingLedger(l Ledger, size int, m *metrics.Metrics) (*cachingLedger, error) {
	cts, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	grants, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &cachingLedger{Ledger: l, ciphertexts: cts, grants: grants, metrics: m}, nil
}

func (c *cachingLedger) lookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.metrics.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *cachingLedger) Ciphertext(ctx context.Context, handle string) (engcrypto.Ciphertext, error) {
	if val, ok := c.ciphertexts.Get(handle); ok {
		c.lookup("ciphertext", true)
		return val.(engcrypto.Ciphertext), nil
	}
	c.lookup("ciphertext", false)
	ct, err := c.Ledger.Ciphertext(ctx, handle)
	if err == nil {
		c.ciphertexts.Add(handle, ct)
	}
	return ct, err
}

func (c *cachingLedger) IsAuthorized(ctx context.Context, handle, principal string) (bool, error) {
	key := handle + "/" + principal
	if _, ok := c.grants.Get(key); ok {
		c.lookup("acl", true)
		return true, nil
	}
	c.lookup("acl", false)
	ok, err := c.Ledger.IsAuthorized(ctx, handle, principal)
	if err == nil && ok {
		c.grants.Add(key, struct{}{})
	}
	return ok, err
}
