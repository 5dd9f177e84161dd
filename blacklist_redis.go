package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// RedisBlacklist stores revocation entries in Redis so every gateway
// instance sees a sign-out immediately. Entries are plain sentinel values
// under BlacklistPrefix with a TTL, so expired revocations evict themselves.
type RedisBlacklist struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  Logger
}

// RedisBlacklistOption customizes a RedisBlacklist
type RedisBlacklistOption func(*RedisBlacklist)

// WithBlacklistPrefix overrides the default key prefix
func WithBlacklistPrefix(prefix string) RedisBlacklistOption {
	return func(b *RedisBlacklist) {
		if prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithBlacklistTimeout bounds every store round trip
func WithBlacklistTimeout(timeout time.Duration) RedisBlacklistOption {
	return func(b *RedisBlacklist) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithBlacklistLogger sets the logger used for store failures
func WithBlacklistLogger(logger Logger) RedisBlacklistOption {
	return func(b *RedisBlacklist) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewRedisBlacklist creates a Redis-backed revocation store. It pings the
// server so a misconfigured address fails at startup, not on first request.
func NewRedisBlacklist(ctx context.Context, client *redis.Client, opts ...RedisBlacklistOption) (*RedisBlacklist, error) {
	if client == nil {
		return nil, errors.New("redis client is required", errors.CategoryBadInput)
	}

	b := &RedisBlacklist{
		client:  client,
		prefix:  BlacklistPrefix,
		timeout: 5 * time.Second,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to revocation store")
	}

	return b, nil
}

// Revoke marks a token as invalid until its entry expires. Re-revoking an
// already revoked token refreshes the entry and succeeds.
func (b *RedisBlacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if token == "" {
		return errors.New("token is required", errors.CategoryBadInput)
	}

	if ttl <= 0 {
		ttl = DefaultBlacklistTTL
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.client.Set(callCtx, b.prefix+token, "true", ttl).Err(); err != nil {
		b.logger.Error("blacklist revoke failed", "error", err)
		return b.unavailable(err)
	}

	return nil
}

// IsRevoked reports whether the token has a live revocation entry. A store
// failure is returned as ErrBlacklistUnavailable, never as (false, nil).
func (b *RedisBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	n, err := b.client.Exists(callCtx, b.prefix+token).Result()
	if err != nil {
		b.logger.Error("blacklist lookup failed", "error", err)
		return false, b.unavailable(err)
	}

	return n > 0, nil
}

func (b *RedisBlacklist) unavailable(err error) error {
	return errors.Wrap(err, ErrBlacklistUnavailable.Category, ErrBlacklistUnavailable.Message).
		WithTextCode(ErrBlacklistUnavailable.TextCode).
		WithCode(ErrBlacklistUnavailable.Code)
}

var _ TokenBlacklist = (*RedisBlacklist)(nil)
