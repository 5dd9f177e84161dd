package auth

import (
	"context"
	"reflect"
	"time"
)

// Auther orchestrates credential verification, token minting, and token
// revocation. It satisfies the Authenticator interface.
type Auther struct {
	provider         IdentityProvider
	signingKey       []byte
	tokenExpiration  int
	extendedDuration int
	issuer           string
	audience         []string
	logger           Logger
	tokenService     TokenService
	tokenValidator   TokenValidator
	blacklist        TokenBlacklist
}

// NewAuthenticator returns a new Authenticator. Without WithBlacklist the
// revocation store is in-process only.
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:         provider,
		signingKey:       []byte(opts.GetSigningKey()),
		tokenExpiration:  opts.GetTokenExpiration(),
		extendedDuration: opts.GetExtendedTokenDuration(),
		audience:         opts.GetAudience(),
		issuer:           opts.GetIssuer(),
		logger:           defLogger{},
		tokenService:     tokenService,
		blacklist:        NewMemoryBlacklist(time.Minute),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	// Update the TokenService logger as well
	s.tokenService = NewTokenService(
		s.signingKey,
		s.tokenExpiration,
		s.issuer,
		s.audience,
		logger,
	)
	return s
}

// WithBlacklist sets the revocation store consulted by SessionFromToken
// and written by Logout
func (s *Auther) WithBlacklist(blacklist TokenBlacklist) *Auther {
	if blacklist != nil {
		s.blacklist = blacklist
	}
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Blacklist returns the revocation store used by this Authenticator
func (s *Auther) Blacklist() TokenBlacklist {
	return s.blacklist
}

func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.VerifyIdentity(ctx, identifier, password); err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		return "", ErrIdentityNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Login token generation error", "error", err)
		return "", err
	}

	return token, nil
}

// Logout revokes the given token. The revocation entry outlives the
// longest token lifetime this instance mints, so the entry is always alive
// while the token could still verify. Revoking an already revoked or
// otherwise unknown token succeeds.
func (s *Auther) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.blacklist.Revoke(ctx, token, s.maxTokenLifetime()); err != nil {
		s.logger.Error("Logout revocation error", "error", err)
		return err
	}

	return nil
}

func (s *Auther) Impersonate(ctx context.Context, identifier string) (string, error) {
	var err error
	var identity Identity

	if identity, err = s.provider.FindIdentityByIdentifier(ctx, identifier); err != nil {
		s.logger.Error("Impersonate verify identity error", "error", err)
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Impersonate identity is nil")
		return "", ErrIdentityNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Impersonate token generation error", "error", err)
		return "", err
	}

	return token, nil
}

func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())

	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %s", err)
		return nil, err
	}

	return identity, nil
}

// SessionFromToken checks the revocation store before it verifies the
// token, so a revoked token is rejected even when its signature would no
// longer verify under a rotated key. A store failure rejects the token.
func (s *Auther) SessionFromToken(ctx context.Context, raw string) (Session, error) {
	revoked, err := s.blacklist.IsRevoked(ctx, raw)
	if err != nil {
		s.logger.Error("SessionFromToken revocation lookup failed", "error", err)
		return nil, err
	}

	if revoked {
		return nil, ErrTokenRevoked
	}

	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed", "error", err)
		return nil, err
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims", "error", err)
		return nil, err
	}

	return session, nil
}

func (s *Auther) maxTokenLifetime() time.Duration {
	hours := s.tokenExpiration
	if s.extendedDuration > hours {
		hours = s.extendedDuration
	}
	if hours <= 0 {
		return DefaultBlacklistTTL
	}
	return time.Duration(hours) * time.Hour
}

var _ Authenticator = (*Auther)(nil)
