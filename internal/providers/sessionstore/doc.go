// Package sessionstore records which user owns each Selenium session.
//
// The proxy writes an owner when a client asks for a new session (user
// known, session id not yet assigned) and again when the hub answers with
// the new session id. Writes are fire-and-forget from the proxy's point of
// view; reads are for operators and tests.
//
// Backends:
//   - memory: in-process map with TTL
//   - redis:  go-redis, latest requester under <prefix>:user / <prefix>:id_session
//     and one expiring hash per session
//   - sqlite: modernc.org/sqlite append-only owner log, pruned by TTL
//
// Example Usage:
//
//	store, err := sessionstore.Open(ctx, cfg.Store, metrics)
//	if store != nil {
//		defer store.Close()
//	}
package sessionstore
