// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for log shippers
//   - Verbose: colored console output at debug level (-verbose / LOG_DEV)
//
// Every line emitted while handling a proxied request carries the
// correlation id under the "request_id" key, so the logged session event,
// retry attempts and final outcome of one request can be joined.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	reqLog := logger.ForRequest(reqID)
//	reqLog.Info("forwarding request", zap.String("target", target))
package logging
