// Package middleware rate limits the HTTP API.
//
// Identified callers (X-User-ID) are limited per user, anonymous ones per
// client address. Two Limiter implementations exist: RateLimiter, an
// in-process token bucket, and DistributedRateLimiter, a fixed window in
// Redis shared by every replica.
//
//	users := middleware.NewDistributedRateLimiter(client, middleware.PerUserRateLimitConfig(), "adminkit:rl:user")
//	anon := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	handler = middleware.NewRateLimitMiddleware(users, anon, logger).Handler(handler)
//
// Rejected requests get 429 with Retry-After. When the limiter itself
// fails (Redis down) the request is let through and a warning logged.
package middleware
