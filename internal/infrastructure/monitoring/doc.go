/*
Package monitoring provides Prometheus metrics for the grid proxy.

# Overview

Every Metrics value owns a private registry. The proxy exposes it on
/_proxy/metrics and summarizes it as JSON on /_proxy/healthz.

# Metrics

- HTTP requests by method, WebDriver kind and status
- Upstream attempts by outcome (success, retry, give_up)
- Upstream failures by reason and breaker state
- Session lifecycle events and confirmed session ids
- Dependency calls (session store, hub probe)

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/_proxy/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "redis", "put")
	err := store.Put(ctx, user, sessionID)
	timer.StopErr(err, "write")
*/
package monitoring
