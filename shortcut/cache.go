package shortcut

import "time"

// DefaultCacheTTL is how long a successful load is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// CachePolicy decides whether previously loaded data may be reused.
type CachePolicy struct {
	Enabled bool
	TTL     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultCachePolicy returns an enabled policy with DefaultCacheTTL.
func DefaultCachePolicy() CachePolicy {
	return CachePolicy{Enabled: true, TTL: DefaultCacheTTL}
}

// Valid reports whether data loaded at last is still fresh. A zero last
// time is never valid.
func (p CachePolicy) Valid(last time.Time) bool {
	if !p.Enabled || last.IsZero() {
		return false
	}
	return p.now().Sub(last) < p.TTL
}

// Use reports whether a load may be answered from data loaded at last.
func (p CachePolicy) Use(last time.Time, force bool) bool {
	return !force && p.Valid(last)
}

func (p CachePolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
