package authflow

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorKind identifies an authentication failure. The value doubles as the
// text code of the underlying rich error.
type ErrorKind string

const (
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUserExists         ErrorKind = "user_exists"
	KindUserNotFound       ErrorKind = "user_not_found"
	KindPasswordMismatch   ErrorKind = "password_mismatch"
	KindTokenExpired       ErrorKind = "token_expired"
	KindTokenInvalid       ErrorKind = "token_invalid"
	KindSessionExpired     ErrorKind = "session_expired"
	KindSessionNotFound    ErrorKind = "session_not_found"
	KindUnauthorized       ErrorKind = "unauthorized"
)

// ErrInvalidCredentials is returned when a payload fails its validation schema
var ErrInvalidCredentials = newAuthError(KindInvalidCredentials, "Invalid email or password", http.StatusBadRequest)

// ErrUserExists is returned when the identifier is already taken. Adapters
// should return it when their storage rejects a duplicate identifier.
var ErrUserExists = newAuthError(KindUserExists, "User already exists", http.StatusConflict)

// ErrUserNotFound is returned when no user matches the identifier
var ErrUserNotFound = newAuthError(KindUserNotFound, "User does not exist", http.StatusNotFound)

// ErrPasswordMismatch is returned when the secret does not match the stored hash
var ErrPasswordMismatch = newAuthError(KindPasswordMismatch, "Password does not match", http.StatusUnauthorized)

// ErrTokenExpired is returned for tokens past their expiration instant
var ErrTokenExpired = newAuthError(KindTokenExpired, "Token has expired", http.StatusUnauthorized)

// ErrTokenInvalid is returned for tokens with a bad signature, payload or issuer
var ErrTokenInvalid = newAuthError(KindTokenInvalid, "Token is invalid", http.StatusUnauthorized)

// ErrSessionExpired is returned when a stored session is past its expiration
var ErrSessionExpired = newAuthError(KindSessionExpired, "Session has expired", http.StatusUnauthorized)

// ErrSessionNotFound is returned by session adapters when a token has no session
var ErrSessionNotFound = newAuthError(KindSessionNotFound, "Session not found", http.StatusUnauthorized)

// ErrUnauthorized is returned when a request carries no usable credentials
var ErrUnauthorized = newAuthError(KindUnauthorized, "You are not authorized to access this resource", http.StatusUnauthorized)

var taxonomy = []*goerrors.Error{
	ErrInvalidCredentials,
	ErrUserExists,
	ErrUserNotFound,
	ErrPasswordMismatch,
	ErrTokenExpired,
	ErrTokenInvalid,
	ErrSessionExpired,
	ErrSessionNotFound,
	ErrUnauthorized,
}

func newAuthError(kind ErrorKind, message string, code int) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithTextCode(string(kind)).
		WithCode(code)
}

// KindOf returns the authentication kind carried by err, or an empty kind
// when err is not part of the taxonomy. The wrap chain is walked so adapter
// errors wrapping a sentinel keep their kind.
func KindOf(err error) ErrorKind {
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		rich, ok := cur.(*goerrors.Error)
		if !ok || rich.Category != goerrors.CategoryAuth {
			continue
		}
		if e := errorForKind(ErrorKind(rich.TextCode)); e != nil {
			return ErrorKind(e.TextCode)
		}
	}
	return ""
}

// IsAuthenticationError reports whether err belongs to the authentication
// error category.
func IsAuthenticationError(err error) bool {
	return KindOf(err) != ""
}

// Message returns the fixed human readable message for kind.
func (k ErrorKind) Message() string {
	if e := errorForKind(k); e != nil {
		return e.Message
	}
	return ""
}

// Err returns the sentinel error for kind, nil for unknown kinds.
func (k ErrorKind) Err() error {
	if e := errorForKind(k); e != nil {
		return e
	}
	return nil
}

// StatusCode maps the kind to an HTTP status code.
func (k ErrorKind) StatusCode() int {
	if e := errorForKind(k); e != nil && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}

func errorForKind(k ErrorKind) *goerrors.Error {
	for _, e := range taxonomy {
		if e.TextCode == string(k) {
			return e
		}
	}
	return nil
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return KindOf(err) == KindTokenExpired
}

// IsTokenInvalidError will check for tokens that failed verification
func IsTokenInvalidError(err error) bool {
	return KindOf(err) == KindTokenInvalid
}
