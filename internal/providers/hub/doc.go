// Package hub talks to the Selenium hub outside the proxied data path.
//
// Probe backs the /_proxy/healthz endpoint: one GET to the hub's status
// route, no retries, readiness read from either the Grid 3/4 or the legacy
// JSON shape.
package hub
