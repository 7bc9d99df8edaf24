/*
Package tracing assigns correlation ids and records request spans.

# Overview

Every inbound request gets a fresh request id (req_<ULID>) from
HTTPMiddleware. Handlers read it with RequestID(ctx) and tag their log lines
with it. Nested spans (dispatch, store writes) share the id and carry their
parent span id. Finished spans are logged asynchronously at debug level, or
at warn level when they failed.

Trace context is never propagated through HTTP headers: the proxy must not
alter the exchange between client and hub.

# Usage

	tracer := tracing.New(logger, 1000)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "dispatch")
	defer tracer.Submit(span)
	span.SetTag("target", target)
*/
package tracing
