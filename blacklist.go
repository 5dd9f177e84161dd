package auth

import (
	"context"
	"time"
)

// BlacklistPrefix namespaces revocation entries in shared stores
const BlacklistPrefix = "blacklisted:"

// DefaultBlacklistTTL matches the maximum token lifetime; an entry only
// needs to outlive the token it revokes
const DefaultBlacklistTTL = 24 * time.Hour

// TokenBlacklist is the revocation store consulted on every request.
//
// IsRevoked returning an error means the store could not answer; callers
// must fail closed and reject the request rather than treat the token as
// valid. Revoke is idempotent: revoking an already revoked token refreshes
// its entry and succeeds.
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}
