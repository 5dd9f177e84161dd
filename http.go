package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-authgate/middleware/authware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type RouteAuthenticator struct {
	auth                   Authenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	Logger                 Logger
	AuthErrorHandler       func(c router.Context, err error) error
	ErrorHandler           func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := 24 * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

type tokenServiceProvider interface {
	TokenService() TokenService
}

type blacklistProvider interface {
	Blacklist() TokenBlacklist
}

// ProtectedRoute guards routes that require an authenticated caller.
// Requests without a credential are rejected.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return authware.New(a.middlewareConfig(cfg, errorHandler, false))
}

// RequestPipeline is the gateway-wide middleware: requests without a
// credential continue anonymously, requests with one are fully checked.
func (a *RouteAuthenticator) RequestPipeline(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return authware.New(a.middlewareConfig(cfg, errorHandler, true))
}

func (a *RouteAuthenticator) middlewareConfig(cfg Config, errorHandler func(router.Context, error) error, allowAnonymous bool) authware.Config {
	if errorHandler == nil {
		errorHandler = a.MakeClientRouteAuthErrorHandler(false)
	}

	mw := authware.Config{
		ErrorHandler:      errorHandler,
		AuthScheme:        cfg.GetAuthScheme(),
		ContextKey:        cfg.GetContextKey(),
		TokenLookup:       cfg.GetTokenLookup(),
		RevocationTimeout: cfg.GetRevocationTimeout(),
		AllowAnonymous:    allowAnonymous,
		TokenValidator:    a.tokenValidator(),
		ContextEnricher: func(c context.Context, claims authware.AuthClaims) context.Context {
			if authClaims, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(c, authClaims)
			}
			return c
		},
	}

	if provider, ok := a.auth.(blacklistProvider); ok {
		mw.Blacklist = provider.Blacklist()
	}

	return mw
}

// tokenValidator adapts the authenticator's token service to the
// middleware's validator contract
func (a *RouteAuthenticator) tokenValidator() authware.TokenValidator {
	return validatorAdapter{auth: a.auth}
}

type validatorAdapter struct {
	auth Authenticator
}

func (v validatorAdapter) Validate(tokenString string) (authware.AuthClaims, error) {
	if provider, ok := v.auth.(tokenServiceProvider); ok {
		claims, err := provider.TokenService().Validate(tokenString)
		if err != nil {
			return nil, err
		}
		return claims, nil
	}
	return nil, ErrUnableToDecodeSession
}

func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, token, duration)
	return token, nil
}

// Logout revokes the bearer token attached to the request and clears the
// session cookie. A request without a token is a no-op success, so repeated
// sign-outs behave the same as the first.
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	raw, err := authware.ExtractRawTokenFromContext(
		ctx,
		authware.GetExtractors(a.cfg.GetTokenLookup(), a.cfg.GetAuthScheme()),
	)

	if err == nil && raw != "" {
		if err := a.auth.Logout(ctx.Context(), raw); err != nil {
			a.Logger.Error("Logout revocation error", "error", err)
			return err
		}
	}

	a.cookieDel(ctx, a.cfg.GetContextKey())
	return nil
}

func (a *RouteAuthenticator) Impersonate(c router.Context, identifier string) error {
	token, err := a.auth.Impersonate(c.Context(), identifier)
	if err != nil {
		a.Logger.Error("Impersonate authentication error", "error", err)
		return err
	}

	a.setCookieToken(c, token, a.cookieDuration)
	return nil
}

// MakeClientRouteAuthErrorHandler maps every middleware rejection to the
// same unauthorized response; the specific cause only reaches the logs.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else if IsBlacklistUnavailableError(err) || errors.Is(err, authware.ErrRevocationUnavailable) {
			richErr = ErrBlacklistUnavailable
		} else if errors.Is(err, authware.ErrTokenRevoked) {
			richErr = ErrTokenRevoked
		} else if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.AuthErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication rejected",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	return c.JSON(router.StatusUnauthorized, router.ViewContext{
		"error": "Unauthorized",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.JSON(richErr.Code, router.ViewContext{
			"error": "Internal Server Error",
		})
	}
}
