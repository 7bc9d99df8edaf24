// Package session classifies WebDriver requests into session lifecycle events.
//
// Components:
//   - Route: path classifier for the session collection route
//   - DesiredCapabilities: normalized capability record (one user field
//     regardless of the key spelling a client used)
//   - Extractor: turns (method, path, body) into a CreateEvent, DeleteEvent,
//     CommandEvent or nothing, and publishes session owners to a Store
//
// Classification:
//   - DELETE <any path>              → DeleteEvent
//   - POST <route>                   → CreateEvent
//   - POST <...>/url                 → CommandEvent
//   - anything else                  → no event
//
// Extraction never fails. Bodies that do not decode yield events with empty
// fields, so a malformed payload is still forwarded and still logged.
//
// Example Usage:
//
//	ex := session.NewExtractor(session.NewRoute("/wd/hub/session"),
//		session.WithStore(store, 2*time.Second),
//		session.WithLogger(logger),
//	)
//	if ev := ex.Extract(ctx, r.Method, r.URL.RequestURI(), body); ev != nil {
//		logger.Info("session event", zap.Object("event", ev))
//	}
package session
