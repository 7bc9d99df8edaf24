package proxy

import (
	"context"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/GriffinCanCode/gridproxy/internal/shared/id"
)

// RequestContext is everything one proxied request needs, built once when
// the request arrives and read-only afterwards.
type RequestContext struct {
	ID        id.RequestID
	Method    string
	Path      string // path and query as received
	Body      []byte
	Header    http.Header // headers to send upstream
	TargetURL string

	remoteAddr string
}

// NewRequestContext resolves the upstream URL and the forwarded headers
// for an inbound request whose body has already been buffered.
func NewRequestContext(reqID id.RequestID, r *http.Request, body []byte, forward string) *RequestContext {
	path := r.URL.RequestURI()

	return &RequestContext{
		ID:        reqID,
		Method:    r.Method,
		Path:      path,
		Body:      body,
		Header:    forwardHeaders(r),
		TargetURL: "http://" + forward + path,

		remoteAddr: r.RemoteAddr,
	}
}

// upstreamRequest builds a retryable request. The body is handed over as a
// byte slice so every attempt resends it from the start.
func (rc *RequestContext) upstreamRequest(ctx context.Context) (*retryablehttp.Request, error) {
	var body interface{}
	if len(rc.Body) > 0 {
		body = rc.Body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, rc.Method, rc.TargetURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = rc.Header.Clone()
	return req, nil
}
