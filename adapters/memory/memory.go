// Package memory is an in process storage adapter for tests, demos and
// single instance deployments.
package memory

import (
	"context"
	"sync"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/google/uuid"
)

// Store keeps users and sessions in maps guarded by a mutex. It
// implements authflow.SessionAdapter.
type Store struct {
	mu         sync.RWMutex
	identifier string
	users      map[string]*authflow.User
	byID       map[string]*authflow.User
	sessions   map[string]*authflow.Session
}

var _ authflow.SessionAdapter = (*Store)(nil)

// New creates a store keyed on the given identifier field, "email" when empty
func New(identifier string) *Store {
	if identifier == "" {
		identifier = authflow.DefaultIdentifier
	}
	return &Store{
		identifier: identifier,
		users:      make(map[string]*authflow.User),
		byID:       make(map[string]*authflow.User),
		sessions:   make(map[string]*authflow.Session),
	}
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*authflow.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[identifier]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

// CreateUser stores user, assigning an ID when missing. A taken
// identifier returns authflow.ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, user *authflow.User) (*authflow.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := copyUser(user)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	key := stored.IdentifierValue(s.identifier)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[key]; ok {
		return nil, authflow.ErrUserExists
	}

	s.users[key] = stored
	s.byID[stored.ID] = stored

	return copyUser(stored), nil
}

func (s *Store) CreateSession(ctx context.Context, user *authflow.User, token string, expires time.Time) (*authflow.SessionWithUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := &authflow.Session{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Token:   token,
		Expires: expires,
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	out := *session
	return &authflow.SessionWithUser{Session: &out, User: copyUser(user)}, nil
}

// DestroySession removes the session for token, returning
// authflow.ErrSessionNotFound when there is none.
func (s *Store) DestroySession(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return authflow.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}

// GetUserFromSession returns expired sessions as well, the caller decides
// what to do with them.
func (s *Store) GetUserFromSession(ctx context.Context, token string) (*authflow.SessionWithUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}

	out := *session
	return &authflow.SessionWithUser{
		Session: &out,
		User:    copyUser(s.byID[session.UserID]),
	}, nil
}

// Len returns the number of users and sessions held
func (s *Store) Len() (users, sessions int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.sessions)
}

func copyUser(u *authflow.User) *authflow.User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Fields != nil {
		out.Fields = make(map[string]any, len(u.Fields))
		for k, v := range u.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}
