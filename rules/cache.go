package rules

import "time"

// RulesCache caches the enabled rule set between passes so a pass does not
// hit the store for every email. Implementations must be safe for
// concurrent use.
type RulesCache interface {
	// Get retrieves cached rules, nil on miss or expiry.
	Get() []*Rule

	// Set stores rules in the cache.
	Set(rules []*Rule)

	// Invalidate clears the cache, forcing a refresh on the next Get.
	Invalidate()

	// IsValid reports whether the cache holds usable data.
	IsValid() bool
}

// CacheConfig holds cache behavior settings.
type CacheConfig struct {
	// TTL for cached entries; 0 means manual invalidation only.
	TTL time.Duration
}

// DefaultCacheConfig returns the default: no TTL, invalidate on rule
// mutations.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}
