// Package config provides 12-factor configuration management for the grid proxy.
//
// Configuration is layered, later sources winning:
//
//  1. Defaults (Default)
//  2. An optional YAML or TOML file (-config)
//  3. A .env file in the working directory
//  4. Environment variables
//  5. Command line flags (-listen, -forward, -timeout, -verbose)
//
// Configuration Sections:
//   - Server: listen address and request body limit
//   - Upstream: hub address, per-attempt timeout, connection pool
//   - Retry: retry budget for non-create requests
//   - Breaker: optional circuit breaker around dispatch
//   - Session: WebDriver session route
//   - Auth: Basic-Auth gate
//   - Store: session→user store backend (none, memory, redis, sqlite)
//   - Logging, RateLimit, CORS
//
// Example Usage:
//
//	flags, err := config.ParseFlags(os.Args[1:], os.Stderr)
//	cfg, err := config.Load(flags.ConfigFile)
//	err = flags.Apply(cfg)
//
// Environment Variables:
//   - PROXY_LISTEN, PROXY_FORWARD, PROXY_TIMEOUT, PROXY_VERBOSE
//   - PROXY_RETRY_MAX, PROXY_RETRY_DELAY, PROXY_SESSION_ROUTE
//   - PROXY_AUTH_USER, PROXY_AUTH_PASSWORD
//   - PROXY_STORE, PROXY_REDIS_ADDR, PROXY_SQLITE_PATH
//   - LOG_LEVEL, LOG_DEV, RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
