package sessionstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// Redis stores owners in redis. The latest requester is kept under
// <prefix>:user and <prefix>:id_session, and each known session under a
// <prefix>:session:<id> hash that expires after the TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewRedis(client, opts.Prefix, opts.TTL), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "gridproxy"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(parts ...string) string {
	k := r.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// Put records user as the owner of sessionID in one transaction.
func (r *Redis) Put(ctx context.Context, user, sessionID string) error {
	now := time.Now().UnixMilli()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key("user"), user, 0)
		pipe.Set(ctx, r.key("id_session"), sessionID, 0)

		if sessionID != "" {
			key := r.key("session", sessionID)
			pipe.HSet(ctx, key, "user", user, "recorded_at", now)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Owner returns the recorded owner of sessionID.
func (r *Redis) Owner(ctx context.Context, sessionID string) (Owner, error) {
	fields, err := r.client.HGetAll(ctx, r.key("session", sessionID)).Result()
	if err != nil {
		return Owner{}, fmt.Errorf("redis owner: %w", err)
	}
	if len(fields) == 0 {
		return Owner{}, ErrNotFound
	}

	owner := Owner{User: fields["user"], SessionID: sessionID}
	if ms, err := strconv.ParseInt(fields["recorded_at"], 10, 64); err == nil {
		owner.RecordedAt = time.UnixMilli(ms)
	}
	return owner, nil
}

// Latest returns the most recent Put. Both keys are read in one MGET so
// the pair always comes from the same write.
func (r *Redis) Latest(ctx context.Context) (Owner, error) {
	vals, err := r.client.MGet(ctx, r.key("user"), r.key("id_session")).Result()
	if err != nil {
		return Owner{}, fmt.Errorf("redis latest: %w", err)
	}

	user, ok := vals[0].(string)
	if !ok {
		return Owner{}, ErrNotFound
	}
	sessionID, _ := vals[1].(string)
	return Owner{User: user, SessionID: sessionID}, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
