// Package server assembles the proxy from its parts.
//
// Server Lifecycle:
//  1. Load configuration from file, environment and flags
//  2. Initialize logger, metrics and tracer
//  3. Open the session store and the optional circuit breaker
//  4. Build the dispatcher, handler and hub probe
//  5. Mount /_proxy ops routes and the proxy as the catch-all route
//  6. Serve until Shutdown, then Close to flush background work
//
// Example Usage:
//
//	cfg, _ := config.Load("")
//	srv, err := server.NewServer(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//	go srv.Run()
package server
