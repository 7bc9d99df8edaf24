// Package middleware provides the gin middleware around the proxy.
//
// Middleware stack includes:
//   - BasicAuth: single-account gate in front of proxied traffic
//   - RateLimit: per-IP token bucket with idle client cleanup
//   - CORS: read-only CORS for the /_proxy ops endpoints
//
// Rejections from RateLimit use the WebDriver error shape so Selenium
// clients report the message instead of a decode failure.
//
// Example Usage:
//
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//	router.NoRoute(middleware.BasicAuth(cfg.Auth), handler.Handle)
package middleware
