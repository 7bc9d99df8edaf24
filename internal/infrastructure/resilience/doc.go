/*
Package resilience provides a circuit breaker for calls to the Selenium hub.

# Overview

When the hub stops accepting connections every proxied request would
otherwise spend its whole retry budget failing. An open breaker fails those
requests immediately instead. Only transport-level errors count as failures;
HTTP error statuses from the hub are valid responses and pass through.

# Usage

	breaker := resilience.New("hub", resilience.Settings{
		OpenTimeout: 30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(10),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	err := breaker.Do(func() error {
		resp, err = client.Do(req)
		return err
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[probes succeed]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open
*/
package resilience
