package auth_test

import (
	"context"
	"io"
	"mime/multipart"
	"time"

	auth "github.com/goliatone/go-authgate"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
)

// MockIdentity implements auth.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Roles() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// MockUsersStore implements auth.Users
type MockUsersStore struct {
	mock.Mock
}

func (m *MockUsersStore) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsersStore) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsersStore) TrackAttemptedLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUsersStore) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockIdentityProvider implements auth.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) VerifyIdentity(ctx context.Context, identifier, password string) (auth.Identity, error) {
	args := m.Called(ctx, identifier, password)
	if id := args.Get(0); id != nil {
		return id.(auth.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (auth.Identity, error) {
	args := m.Called(ctx, identifier)
	if id := args.Get(0); id != nil {
		return id.(auth.Identity), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLoginPayload implements auth.LoginPayload
type MockLoginPayload struct {
	Identifier      string
	Password        string
	ExtendedSession bool
}

func (m MockLoginPayload) GetIdentifier() string {
	return m.Identifier
}

func (m MockLoginPayload) GetPassword() string {
	return m.Password
}

func (m MockLoginPayload) GetExtendedSession() bool {
	return m.ExtendedSession
}

// stubIdentity is a plain value implementation for tests that do not need
// expectations
type stubIdentity struct {
	id       string
	username string
	email    string
	roles    []string
}

func (s stubIdentity) ID() string       { return s.id }
func (s stubIdentity) Username() string { return s.username }
func (s stubIdentity) Email() string    { return s.email }
func (s stubIdentity) Roles() []string  { return s.roles }

// stubBlacklist is a scriptable revocation store
type stubBlacklist struct {
	revoked   map[string]bool
	revokeErr error
	lookupErr error
}

func newStubBlacklist() *stubBlacklist {
	return &stubBlacklist{revoked: map[string]bool{}}
}

func (s *stubBlacklist) Revoke(_ context.Context, token string, _ time.Duration) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	s.revoked[token] = true
	return nil
}

func (s *stubBlacklist) IsRevoked(_ context.Context, token string) (bool, error) {
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	return s.revoked[token], nil
}

// testConfig implements auth.Config
type testConfig struct {
	signingKey        string
	tokenExpiration   int
	extendedDuration  int
	contextKey        string
	tokenLookup       string
	authScheme        string
	issuer            string
	audience          []string
	revocationTimeout time.Duration
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey:        "test-signing-key",
		tokenExpiration:   24,
		extendedDuration:  72,
		contextKey:        "user",
		tokenLookup:       "header:Authorization",
		authScheme:        "Bearer",
		issuer:            "test-issuer",
		audience:          []string{"test-audience"},
		revocationTimeout: time.Second,
	}
}

func (c testConfig) GetSigningKey() string               { return c.signingKey }
func (c testConfig) GetSigningMethod() string            { return "HS256" }
func (c testConfig) GetContextKey() string               { return c.contextKey }
func (c testConfig) GetTokenExpiration() int             { return c.tokenExpiration }
func (c testConfig) GetExtendedTokenDuration() int       { return c.extendedDuration }
func (c testConfig) GetTokenLookup() string              { return c.tokenLookup }
func (c testConfig) GetAuthScheme() string               { return c.authScheme }
func (c testConfig) GetIssuer() string                   { return c.issuer }
func (c testConfig) GetAudience() []string               { return c.audience }
func (c testConfig) GetRevocationTimeout() time.Duration { return c.revocationTimeout }

// MockHTTPAuthenticator implements auth.HTTPAuthenticator
type MockHTTPAuthenticator struct {
	mock.Mock
}

func (m *MockHTTPAuthenticator) Login(c router.Context, payload auth.LoginPayload) (string, error) {
	args := m.Called(c, payload)
	return args.String(0), args.Error(1)
}

func (m *MockHTTPAuthenticator) Logout(c router.Context) error {
	args := m.Called(c)
	return args.Error(0)
}

func (m *MockHTTPAuthenticator) Impersonate(c router.Context, identifier string) error {
	args := m.Called(c, identifier)
	return args.Error(0)
}

func (m *MockHTTPAuthenticator) MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error {
	args := m.Called(optionalAuth)
	return args.Get(0).(func(c router.Context, err error) error)
}

// MockRegistry implements auth.AccountRegistrerer
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) RegisterUser(ctx context.Context, email, username, password string) (*auth.User, error) {
	args := m.Called(ctx, email, username, password)
	if u := args.Get(0); u != nil {
		return u.(*auth.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	if v := args.Get(0); v != nil {
		return v.([]string)
	}
	return nil
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	if v := args.Get(0); v != nil {
		return v.(map[string]any)
	}
	return nil
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	if v := args.Get(0); v != nil {
		return v.(*multipart.FileHeader), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(map[string]string)
	}
	return nil
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
