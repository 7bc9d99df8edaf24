package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/config"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
)

// ErrNotFound is returned when no owner is recorded for a session.
var ErrNotFound = errors.New("session owner not found")

// Owner is one recorded user/session pair.
type Owner struct {
	User       string    `json:"user"`
	SessionID  string    `json:"session_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store persists session owners. Put with an empty session id records the
// user as the latest requester only; the hub has not assigned an id yet.
type Store interface {
	Put(ctx context.Context, user, sessionID string) error
	Owner(ctx context.Context, sessionID string) (Owner, error)
	Latest(ctx context.Context) (Owner, error)
	Close() error
}

// Open builds the backend selected by cfg. It returns a nil Store for the
// "none" backend.
func Open(ctx context.Context, cfg config.StoreConfig, metrics *monitoring.Metrics) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Backend {
	case config.StoreNone, "":
		return nil, nil
	case config.StoreMemory:
		store = NewMemory(cfg.TTL.Duration)
	case config.StoreRedis:
		store, err = DialRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
			TTL:      cfg.TTL.Duration,
		})
	case config.StoreSQLite:
		store, err = OpenSQLite(ctx, cfg.SQLitePath, cfg.TTL.Duration)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Backend, err)
	}

	if metrics != nil {
		store = Instrument(store, cfg.Backend, metrics)
	}
	return store, nil
}

// instrumented records dependency metrics around every call.
type instrumented struct {
	Store
	name    string
	metrics *monitoring.Metrics
}

// Instrument wraps store so each call is timed and counted under name.
func Instrument(store Store, name string, metrics *monitoring.Metrics) Store {
	return &instrumented{Store: store, name: name, metrics: metrics}
}

func (s *instrumented) Put(ctx context.Context, user, sessionID string) error {
	timer := monitoring.NewTimer(s.metrics, s.name, "put")
	err := s.Store.Put(ctx, user, sessionID)
	timer.StopErr(err, errorType(err))
	return err
}

func (s *instrumented) Owner(ctx context.Context, sessionID string) (Owner, error) {
	timer := monitoring.NewTimer(s.metrics, s.name, "owner")
	owner, err := s.Store.Owner(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		timer.Stop("not_found")
		return owner, err
	}
	timer.StopErr(err, errorType(err))
	return owner, err
}

func errorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "backend"
	}
}
