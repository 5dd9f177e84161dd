package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

// Text codes used to identify auth failures across service boundaries
const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenSignature     = "TOKEN_SIGNATURE"
	TextCodeTokenRevoked       = "TOKEN_REVOKED"
	TextCodeBlacklistDown      = "BLACKLIST_UNAVAILABLE"
	TextCodeIdentityExists     = "IDENTITY_EXISTS"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeDataParseError     = "DATA_PARSE_ERROR"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound)

// ErrIdentityExists is returned when registering an identifier already in use
var ErrIdentityExists = errors.New("identity already exists", errors.CategoryConflict).
	WithTextCode(TextCodeIdentityExists).
	WithCode(errors.CodeConflict)

// ErrMismatchedHashAndPassword is the uniform invalid-credential error; it
// covers both unknown identifiers and wrong passwords so callers cannot
// probe which accounts exist
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTooManyLoginAttempts is returned while an identity is cooling down
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired is returned when a token's exp claim is in the past
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token fails structural parsing
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenSignature is returned when a token's MAC does not verify
var ErrTokenSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned for tokens present in the revocation store
var ErrTokenRevoked = errors.New("token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrBlacklistUnavailable is returned when the revocation store cannot be
// reached. It carries CodeUnauthorized so boundaries reject the request the
// same way they reject a revoked token; the infra detail stays in the logs.
var ErrBlacklistUnavailable = errors.New("revocation store unavailable", errors.CategoryInternal).
	WithTextCode(TextCodeBlacklistDown).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no token
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT claims
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError)

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data", errors.CategoryBadInput).
	WithTextCode(TextCodeDataParseError)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsTokenRevokedError checks for revoked token rejections
func IsTokenRevokedError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTokenRevoked
	}
	return false
}

// IsBlacklistUnavailableError checks whether the revocation store failed;
// callers must treat this as a rejection, never as "not revoked"
func IsBlacklistUnavailableError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeBlacklistDown
	}
	return false
}
