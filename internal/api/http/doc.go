// Package http serves the proxy's own endpoints under /_proxy, kept apart
// from hub routes: health with a live hub probe, Prometheus metrics and
// session owner lookups.
package http
