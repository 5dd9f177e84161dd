package authware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-router"
)

var (
	defaultTokenLookup       = "header:" + router.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
	ErrTokenRevoked          = errors.New("token has been revoked")
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
)

// TokenValidator interface for validating tokens without import cycles
// This mirrors the TokenService.Validate method from the auth package
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// AuthClaims interface for structured claims without import cycles
// This mirrors the AuthClaims interface from the auth package
type AuthClaims interface {
	Subject() string
	UserID() string
	Roles() []string
	HasRole(role string) bool
	IsAtLeast(minRole string) bool
}

// RevocationChecker is the blacklist lookup consulted before the token is
// validated. An error means the store could not answer and the request
// must be rejected.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// IdentityResolver loads the identity behind validated claims into the
// standard context. A resolver error rejects the request.
type IdentityResolver func(ctx context.Context, claims AuthClaims) (context.Context, error)

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	TokenLookup    string
	AuthScheme     string
	// TokenValidator is required for token validation
	TokenValidator TokenValidator

	// Blacklist is the optional revocation store. When set, every request
	// checks it before the token is validated; store failures reject the
	// request rather than letting a possibly revoked token through.
	Blacklist RevocationChecker
	// RevocationTimeout bounds each blacklist lookup
	RevocationTimeout time.Duration

	// AllowAnonymous lets requests without any credential continue down
	// the chain unauthenticated. Requests that do present a token are
	// always fully checked, even with AllowAnonymous set.
	AllowAnonymous bool

	// RequiredRole specifies an exact role that must be present
	RequiredRole string
	// MinimumRole specifies the minimum role level required (uses role hierarchy)
	MinimumRole string

	// ContextEnricher is an optional function to propagate claims to the standard
	// Go context. If provided, it will be called after successful token validation.
	ContextEnricher func(c context.Context, claims AuthClaims) context.Context

	// IdentityResolver optionally resolves the full identity once claims
	// are validated. Runs after ContextEnricher.
	IdentityResolver IdentityResolver
}

// New builds the authentication middleware. The per-request order is
// fixed: extract credential, check revocation, validate token, check
// roles, attach claims, continue. Any failure rejects the request through
// the ErrorHandler; the middleware never falls through on error.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := GetDefaultConfig(config...)
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			raw, err := ExtractRawTokenFromContext(ctx, cfg.getExtractors())
			if err != nil {
				if cfg.AllowAnonymous {
					return ctx.Next()
				}
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.Blacklist != nil {
				revoked, err := cfg.checkRevocation(ctx.Context(), raw)
				if err != nil {
					// fail closed: an unreachable store must not let a
					// possibly revoked token through
					return cfg.ErrorHandler(ctx, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err))
				}
				if revoked {
					return cfg.ErrorHandler(ctx, ErrTokenRevoked)
				}
			}

			claims, err := cfg.TokenValidator.Validate(raw)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if err := performAuthorizationChecks(claims, cfg); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, claims)

			// if a context enricher we use it to propagate claims to the standard context
			if cfg.ContextEnricher != nil {
				stdCtx := ctx.Context()
				stdCtxWithClaims := cfg.ContextEnricher(stdCtx, claims)
				ctx.SetContext(stdCtxWithClaims)
			}

			if cfg.IdentityResolver != nil {
				resolvedCtx, err := cfg.IdentityResolver(ctx.Context(), claims)
				if err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
				ctx.SetContext(resolvedCtx)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func (cfg *Config) checkRevocation(ctx context.Context, token string) (bool, error) {
	callCtx := ctx
	if cfg.RevocationTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cfg.RevocationTimeout)
		defer cancel()
	}

	return cfg.Blacklist.IsRevoked(callCtx, token)
}

// performAuthorizationChecks performs role checks using the configured options
func performAuthorizationChecks(claims AuthClaims, cfg Config) error {
	if cfg.RequiredRole == "" && cfg.MinimumRole == "" {
		return nil
	}

	if cfg.RequiredRole != "" {
		if !claims.HasRole(cfg.RequiredRole) {
			return fmt.Errorf("access denied: required role '%s' not found", cfg.RequiredRole)
		}
	}

	// user has at least the minimum role level?
	if cfg.MinimumRole != "" {
		if !claims.IsAtLeast(cfg.MinimumRole) {
			return fmt.Errorf("access denied: minimum role '%s' required", cfg.MinimumRole)
		}
	}

	return nil
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		// one body for every rejection so callers cannot tell a revoked
		// token from a bad signature or an unreachable store
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.Status(router.StatusUnauthorized).SendString("Unauthorized")
		}
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.RevocationTimeout == 0 {
		cfg.RevocationTimeout = 5 * time.Second
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}
