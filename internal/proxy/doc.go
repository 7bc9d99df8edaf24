// Package proxy forwards WebDriver traffic to a Selenium Grid hub.
//
// A request flows through three stages:
//   - Handler buffers the body, builds a RequestContext and hands it to
//     the session Extractor, whose event is logged and never affects
//     forwarding
//   - Dispatcher sends the request upstream under a Policy, retrying
//     transport failures with a fixed delay
//   - Handler relays the hub's status, headers (minus Connection) and body
//     back to the client byte for byte
//
// New-session requests use a Policy with no timeout and no retries: the
// hub may queue them for a long time, and replaying one could allocate a
// second browser.
//
// Example Usage:
//
//	transport := proxy.NewTransport(cfg.Upstream)
//	dispatcher := proxy.NewDispatcher(transport, proxy.WithDispatcherLogger(logger))
//	handler := proxy.NewHandler(dispatcher, extractor, policies, cfg.Upstream.Forward)
//	router.NoRoute(handler.Handle)
package proxy
