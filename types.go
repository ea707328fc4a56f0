package authflow

import (
	"context"
	"fmt"
	"time"
)

// Logger is satisfied by *slog.Logger and most key/value loggers
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// User is the account record exchanged with the storage adapter. The
// plaintext password never reaches this type.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	FirstName      string         `json:"firstName,omitempty"`
	LastName       string         `json:"lastName,omitempty"`
	Image          string         `json:"image,omitempty"`
	Status         string         `json:"status,omitempty"`
	HashedPassword string         `json:"-"`
	Fields         map[string]any `json:"fields,omitempty"`
}

// IdentifierValue returns the value of the identifier field. Unknown
// fields are resolved through the extension map.
func (u *User) IdentifierValue(field string) string {
	if u == nil {
		return ""
	}
	switch field {
	case "", "email":
		return u.Email
	case "id":
		return u.ID
	}
	return fieldString(u.Fields, field)
}

// Session is a stored login under the session strategy
type Session struct {
	ID      string    `json:"id"`
	UserID  string    `json:"userId"`
	Token   string    `json:"-"`
	Expires time.Time `json:"expires"`
}

// Expired reports whether the session is no longer usable at now
func (s *Session) Expired(now time.Time) bool {
	return s == nil || !s.Expires.After(now)
}

// SessionWithUser pairs a session with its owner
type SessionWithUser struct {
	Session *Session
	User    *User
}

// UserAdapter is the minimum storage contract. Absent users are
// returned as (nil, nil).
type UserAdapter interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)
}

// SessionAdapter extends UserAdapter for the session strategy.
// GetUserFromSession returns (nil, nil) when the token has no session.
type SessionAdapter interface {
	UserAdapter
	CreateSession(ctx context.Context, user *User, token string, expires time.Time) (*SessionWithUser, error)
	DestroySession(ctx context.Context, token string) error
	GetUserFromSession(ctx context.Context, token string) (*SessionWithUser, error)
}

// SessionData is the public view of a session returned to clients
type SessionData map[string]any

// Callbacks let the host customize issued claims and session payloads.
//
// JWT may mutate claims before signing, the identifier claim is restored
// afterwards. Session receives the payload built for the user; a non nil
// return value replaces it, otherwise in place changes are kept.
type Callbacks struct {
	JWT     func(user *User, claims *Claims)
	Session func(user *User, session *Session, data SessionData) SessionData
}

// Status of an engine operation
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is returned by SignUp, SignIn and SignOut
type Result struct {
	Status   Status    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Code     ErrorKind `json:"code,omitempty"`
	Redirect string    `json:"redirect,omitempty"`
}

// OK reports a successful operation
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// SessionResult is returned by Session
type SessionResult struct {
	Status Status      `json:"status"`
	Data   SessionData `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
	Code   ErrorKind   `json:"code,omitempty"`
}

// OK reports a successful lookup
func (r SessionResult) OK() bool {
	return r.Status == StatusSuccess
}

func fieldString(fields map[string]any, key string) string {
	if fields == nil {
		return ""
	}
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print(line("[ERR] AUTH ", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print(line("[WRN] AUTH ", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print(line("[INF] AUTH ", msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {}

func line(prefix, msg string, args []any) string {
	s := prefix + msg
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			s += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			s += fmt.Sprintf(" %v", args[i])
		}
	}
	return newline(s)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
