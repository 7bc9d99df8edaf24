package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/gridproxy/internal/domain/session"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/logging"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/gridproxy/internal/shared/id"
)

const (
	// DefaultMaxBodyBytes caps a buffered request body.
	DefaultMaxBodyBytes int64 = 50 << 20

	errorExcerptBytes   = 512
	createResponseBytes = 1 << 20
)

// Handler forwards every request it receives to the hub.
type Handler struct {
	dispatcher *Dispatcher
	extractor  *session.Extractor
	policies   Policies
	forward    string
	maxBody    int64
	metrics    *monitoring.Metrics
	logger     *logging.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxBodyBytes limits how much of a request body is buffered.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithHandlerMetrics records session events on m.
func WithHandlerMetrics(m *monitoring.Metrics) HandlerOption {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithHandlerLogger sets the logger for events and failures.
func WithHandlerLogger(l *logging.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a handler forwarding to the hub at forward (HOST:PORT).
func NewHandler(dispatcher *Dispatcher, extractor *session.Extractor, policies Policies, forward string, opts ...HandlerOption) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		extractor:  extractor,
		policies:   policies,
		forward:    forward,
		maxBody:    DefaultMaxBodyBytes,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = monitoring.NewMetrics()
	}
	return h
}

// Handle is the gin handler for proxied traffic.
func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	reqID := tracing.RequestID(ctx)
	if reqID == "" {
		reqID = id.NewRequestID()
		ctx = tracing.WithRequestID(ctx, reqID)
		c.Request = c.Request.WithContext(ctx)
	}
	log := h.logger.ForRequest(reqID.String())

	body, err := h.readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			log.Warn("request body too large", zap.Int64("limit", tooLarge.Limit))
			writeError(c, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case ctx.Err() != nil:
			c.Abort()
		default:
			log.Warn("failed to read request body", zap.Error(err))
			writeError(c, http.StatusBadRequest, "failed to read request body")
		}
		return
	}

	rc := NewRequestContext(reqID, c.Request, body, h.forward)
	ev := h.inspect(ctx, log, rc)
	c.Set(monitoring.KindKey, kindOf(ev))

	policy := h.policies.For(rc.Method, rc.Path)
	resp, err := h.dispatcher.Dispatch(ctx, rc, policy)
	if err != nil {
		if ctx.Err() != nil {
			c.Abort()
			return
		}
		status := http.StatusBadGateway
		if failureReason(err) == "timeout" {
			status = http.StatusGatewayTimeout
		}
		_ = c.Error(err)
		writeError(c, status, err.Error())
		return
	}
	defer resp.Body.Close()

	h.relay(c, log, rc, ev, resp)
}

func (h *Handler) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
}

// inspect runs the extractor and logs its result. Nothing it does can fail
// the request.
func (h *Handler) inspect(ctx context.Context, log *logging.Logger, rc *RequestContext) (ev session.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("session inspection panicked", zap.Any("panic", r))
			ev = nil
		}
	}()

	ev = h.extractor.Extract(ctx, rc.Method, rc.Path, rc.Body)
	if ev == nil {
		log.Debug("no session event", zap.String("method", rc.Method), zap.String("path", rc.Path))
		return nil
	}

	log.Info("session event", zap.Object("event", ev), zap.String("client_ip", peerIP(rc.remoteAddr)))
	h.metrics.RecordSessionEvent(string(ev.Status()))
	return ev
}

// relay writes the hub's response to the client unchanged.
func (h *Handler) relay(c *gin.Context, log *logging.Logger, rc *RequestContext, ev session.Event, resp *http.Response) {
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	created := ok && h.policies.IsCreate(rc.Method, rc.Path)

	keep := 0
	switch {
	case !ok:
		keep = errorExcerptBytes
	case created:
		keep = createResponseBytes
	}
	capture := &excerpt{limit: keep}

	copyResponseHeaders(c.Writer.Header(), resp.Header)
	c.Writer.WriteHeader(resp.StatusCode)
	c.Writer.WriteHeaderNow()

	n, err := io.Copy(c.Writer, io.TeeReader(resp.Body, capture))
	if err != nil {
		log.Warn("response relay interrupted",
			zap.Int("status", resp.StatusCode),
			zap.Int64("bytes_written", n),
			zap.Error(err),
		)
	}

	if !ok {
		log.Error("hub returned non-success status",
			zap.String("method", rc.Method),
			zap.String("target", rc.TargetURL),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", capture.buf),
		)
		return
	}

	if created && err == nil {
		h.recordCreated(c.Request.Context(), log, ev, capture.buf)
	}
}

// recordCreated logs the id the hub assigned to a new session and
// publishes it against the requesting user.
func (h *Handler) recordCreated(ctx context.Context, log *logging.Logger, ev session.Event, body []byte) {
	sessionID := HubSessionID(body)
	if sessionID == "" {
		log.Warn("hub response carried no session id")
		return
	}

	var user string
	if create, ok := ev.(session.CreateEvent); ok {
		user = create.Capabilities.SodaUser
	}

	done := session.CreatedEvent{SessionID: sessionID, SodaUser: user}
	log.Info("session event", zap.Object("event", done))
	h.metrics.RecordSessionEvent(string(done.Status()))
	h.metrics.IncSessionsCreated()
	h.extractor.Publish(ctx, user, sessionID)
}

// HubSessionID reads the session id from a new-session response in either
// the W3C ({"value":{"sessionId":..}}) or the legacy JSON wire shape.
func HubSessionID(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	res := gjson.GetManyBytes(body, "sessionId", "value.sessionId")
	for _, r := range res {
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// kindOf labels a request for metrics. Requests that carry no session
// event (status, screenshots, element calls) share "other".
func kindOf(ev session.Event) string {
	switch ev.(type) {
	case session.CreateEvent:
		return "create"
	case session.DeleteEvent:
		return "delete"
	case session.CommandEvent:
		return "url"
	default:
		return "other"
	}
}

// writeError answers with a WebDriver-shaped error body.
func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"value": gin.H{
			"error":   "unknown error",
			"message": message,
		},
	})
}

// excerpt keeps the first limit bytes written to it and discards the rest.
type excerpt struct {
	buf   []byte
	limit int
}

func (e *excerpt) Write(p []byte) (int, error) {
	if room := e.limit - len(e.buf); room > 0 {
		e.buf = append(e.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}
