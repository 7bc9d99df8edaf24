package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/logging"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/gridproxy/internal/shared/id"
)

// Store records which user owns a session. Implementations must be safe
// for concurrent use.
type Store interface {
	Put(ctx context.Context, user, sessionID string) error
}

// Extractor turns inspected requests into session events.
type Extractor struct {
	route        Route
	store        Store
	writeTimeout time.Duration
	logger       *logging.Logger

	pending sync.WaitGroup

	mu sync.Mutex
	// tails holds the last queued write per correlation id so writes of
	// one request reach the store in call order.
	tails map[id.RequestID]chan struct{}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithStore publishes user/session pairs to store. Each write is bounded
// by timeout.
func WithStore(store Store, timeout time.Duration) Option {
	return func(e *Extractor) {
		e.store = store
		if timeout > 0 {
			e.writeTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for decode and store failures.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExtractor creates an extractor for the given collection route.
func NewExtractor(route Route, opts ...Option) *Extractor {
	e := &Extractor{
		route:        route,
		writeTimeout: 2 * time.Second,
		logger:       logging.NewNop(),
		tails:        make(map[id.RequestID]chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Route returns the collection route the extractor classifies against.
func (e *Extractor) Route() Route {
	return e.route
}

// Extract classifies a request and returns its event, or nil when the
// request is not a session lifecycle call. Malformed bodies never fail
// extraction: the affected fields are left empty.
func (e *Extractor) Extract(ctx context.Context, method, path string, body []byte) Event {
	switch {
	case method == http.MethodDelete:
		sessionID, _ := e.route.SessionID(path)
		return DeleteEvent{SessionID: sessionID}

	case method == http.MethodPost && e.route.IsNewSession(path):
		caps, err := ParseCapabilities(body)
		if err != nil {
			e.log(ctx).Debug("malformed create payload", zap.Error(err))
		}
		// The hub has not assigned an id yet, so this is usually empty.
		sessionID, _ := e.route.SessionID(path)
		e.Publish(ctx, caps.SodaUser, sessionID)
		return CreateEvent{Capabilities: caps}

	case method == http.MethodPost && LastSegment(path) == CommandURL:
		url, err := ParseCommandURL(body)
		if err != nil {
			e.log(ctx).Debug("malformed command payload", zap.Error(err))
		}
		sessionID, _ := e.route.SessionID(path)
		return CommandEvent{SessionID: sessionID, URL: url}

	default:
		return nil
	}
}

// Publish writes the user/session pair to the store in the background.
// The write outlives the request but keeps its correlation id. Writes
// published under the same correlation id are applied in call order.
// Failures are logged and dropped.
func (e *Extractor) Publish(ctx context.Context, user, sessionID string) {
	if e.store == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	log := e.log(ctx)
	reqID := tracing.RequestID(ctx)
	prev, done := e.enqueue(reqID)

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer e.dequeue(reqID, done)
		defer func() {
			if r := recover(); r != nil {
				log.Error("session store panicked", zap.Any("panic", r))
			}
		}()

		if prev != nil {
			<-prev
		}

		writeCtx, cancel := context.WithTimeout(ctx, e.writeTimeout)
		defer cancel()

		if err := e.store.Put(writeCtx, user, sessionID); err != nil {
			log.Warn("failed to publish session owner",
				zap.String("soda_user", user),
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}()
}

// enqueue registers a write for reqID and returns the write it must wait
// for, if any. Writes without a correlation id are not ordered.
func (e *Extractor) enqueue(reqID id.RequestID) (prev, done chan struct{}) {
	done = make(chan struct{})
	if reqID == "" {
		return nil, done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	prev = e.tails[reqID]
	e.tails[reqID] = done
	return prev, done
}

func (e *Extractor) dequeue(reqID id.RequestID, done chan struct{}) {
	close(done)
	if reqID == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tails[reqID] == done {
		delete(e.tails, reqID)
	}
}

// Wait blocks until background store writes have finished.
func (e *Extractor) Wait() {
	e.pending.Wait()
}

func (e *Extractor) log(ctx context.Context) *logging.Logger {
	if reqID := tracing.RequestID(ctx); reqID != "" {
		return e.logger.ForRequest(reqID.String())
	}
	return e.logger
}
