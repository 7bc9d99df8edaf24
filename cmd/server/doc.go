// Package main is the entry point for gridproxy, a transparent proxy in
// front of a Selenium Grid hub.
//
// Every request is forwarded to the hub unchanged while session lifecycle
// calls (create, delete, navigate) are logged with the requesting user.
//
// Configuration, lowest precedence first:
//   - Built-in defaults
//   - A YAML or TOML file given with -config
//   - .env in the working directory
//   - Environment variables (PROXY_*, LOG_*, RATE_LIMIT_*, CORS_*)
//   - CLI flags
//
// Usage:
//
//	# Forward to a local hub
//	./gridproxy -listen 0.0.0.0:8080 -forward 127.0.0.1:4444
//
//	# Debug console logging
//	./gridproxy -forward hub:4444 -verbose
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
