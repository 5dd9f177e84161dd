package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Middleware exposes the route guards wired by the HTTP boundary
type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
	RequestPipeline(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// RegisterAuthRoutes mounts the sign-up, sign-in, and sign-out endpoints
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.
		Post(controller.Routes.SignUp, controller.SignUp).
		SetName("sign-up.post")

	app.
		Post(controller.Routes.SignIn, controller.SignIn).
		SetName("sign-in.post")

	app.
		Post(controller.Routes.SignOut, controller.SignOut).
		SetName("sign-out.post")
}

type AuthControllerRoutes struct {
	SignUp  string
	SignIn  string
	SignOut string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Registry     AccountRegistrerer
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			SignUp:  "/auth/sign-up",
			SignIn:  "/auth/sign-in",
			SignOut: "/auth/sign-out",
		},
	}

	c.ErrorHandler = c.defaultErrorHandler

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Registry == nil {
		panic("Missing AccountRegistrerer in auth controller...")
	}

	return c
}

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerAuther sets the HTTP authenticator
func WithControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithControllerRegistry sets the account registration collaborator
func WithControllerRegistry(registry AccountRegistrerer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registry = registry
		return c
	}
}

// WithControllerRoutes overrides the default route paths
func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// AuthResponse is the token envelope returned by sign-up and sign-in
type AuthResponse struct {
	Token string `json:"token"`
}

// MessageResponse carries informational endpoint results
type MessageResponse struct {
	Message string `json:"message"`
}

// SignUpRequest payload
type SignUpRequest struct {
	Email    string `form:"email" json:"email"`
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r SignUpRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Username,
			validation.Required,
			validation.Length(3, 64),
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(8, 128),
		),
	)
}

// SignInRequest payload
type SignInRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r SignInRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r SignInRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession reports whether the caller asked for a long session
func (r SignInRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r SignInRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SignUp registers a new account and signs it in, returning a token
func (a *AuthController) SignUp(ctx router.Context) error {
	payload := new(SignUpRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "invalid request payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if _, err := a.Registry.RegisterUser(ctx.Context(), payload.Email, payload.Username, payload.Password); err != nil {
		a.Logger.Error("SignUp registration error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	token, err := a.Auther.Login(ctx, SignInRequest{
		Identifier: payload.Username,
		Password:   payload.Password,
	})
	if err != nil {
		a.Logger.Error("SignUp post-registration login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, AuthResponse{Token: token})
}

// SignIn verifies credentials and returns a token
func (a *AuthController) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "invalid request payload").
			WithCode(errors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	token, err := a.Auther.Login(ctx, payload)
	if err != nil {
		a.Logger.Error("SignIn authentication error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, AuthResponse{Token: token})
}

// SignOut revokes the caller's token. Requests without a token succeed
// so the endpoint stays idempotent.
func (a *AuthController) SignOut(ctx router.Context) error {
	if err := a.Auther.Logout(ctx); err != nil {
		a.Logger.Error("SignOut error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, MessageResponse{Message: "Successfully logged out"})
}

// defaultErrorHandler maps rich errors to JSON responses. Credential and
// token failures collapse into one unauthorized body.
func (a *AuthController) defaultErrorHandler(ctx router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
			"error": "Unauthorized",
		})
	case errors.CategoryRateLimit:
		return ctx.JSON(http.StatusTooManyRequests, router.ViewContext{
			"error": "Too many attempts",
		})
	case errors.CategoryConflict:
		return ctx.JSON(http.StatusConflict, router.ViewContext{
			"error": richErr.Message,
		})
	case errors.CategoryBadInput, errors.CategoryValidation:
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": richErr.Message,
		})
	default:
		a.Logger.Error(
			"Unhandled controller error",
			"error", richErr.Message,
			"category", richErr.Category,
		)
		return ctx.JSON(http.StatusInternalServerError, router.ViewContext{
			"error": "Internal Server Error",
		})
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if verr, ok := err.(validation.Errors); ok {
		for field, ferr := range verr {
			out[field] = ferr.Error()
		}
		return out
	}

	if err != nil {
		out["payload"] = err.Error()
	}

	return out
}
