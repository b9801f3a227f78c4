package constants

import (
	"time"
)

// HTTP defaults, overridable through the environment.
const (
	DefaultRateLimitRequests   = 100
	DefaultRateLimitWindow     = time.Minute
	DefaultRequestTimeout      = 30 * time.Second
	DefaultMaxRequestBodyBytes = 64 << 10
	DefaultHTTPPort            = "8080"
	DefaultHSTSMaxAge          = 365 * 24 * 60 * 60
)

// ReferralStatusCacheTTL bounds how stale a cached referral count may get
// if a cache refresh is lost.
const ReferralStatusCacheTTL = 30 * time.Second

const referralStatusCachePrefix = "referral:status:"

// ReferralStatusCacheKey is the cache key holding the referral count for code.
func ReferralStatusCacheKey(code string) string {
	return referralStatusCachePrefix + code
}
