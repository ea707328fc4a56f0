// Package redisstore keeps sessions in redis and delegates user storage
// to another adapter.
package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "auth_flow:"
	minTTL        = time.Second
)

type record struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Identifier string    `json:"identifier"`
	Expires    time.Time `json:"expires"`
}

// Store implements authflow.SessionAdapter. Sessions live under a key
// derived from the token hash and expire with the session itself.
type Store struct {
	authflow.UserAdapter

	client     redis.UniversalClient
	prefix     string
	identifier string
	now        func() time.Time
}

var _ authflow.SessionAdapter = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithPrefix namespaces every key
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithIdentifier sets the user field used to reload session owners,
// "email" by default.
func WithIdentifier(field string) Option {
	return func(s *Store) {
		if field != "" {
			s.identifier = field
		}
	}
}

// WithClock sets the time source used to compute key TTLs
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store backed by client, loading users from users
func New(users authflow.UserAdapter, client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		UserAdapter: users,
		client:      client,
		prefix:      DefaultPrefix,
		identifier:  authflow.DefaultIdentifier,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Store) sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + "session:" + hex.EncodeToString(sum[:])
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "user:" + userID
}

func (s *Store) CreateSession(ctx context.Context, user *authflow.User, token string, expires time.Time) (*authflow.SessionWithUser, error) {
	rec := record{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Identifier: user.IdentifierValue(s.identifier),
		Expires:    expires.UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode session")
	}

	ttl := expires.Sub(s.now())
	if ttl < minTTL {
		ttl = minTTL
	}

	key := s.sessionKey(token)
	userKey := s.userKey(user.ID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, ttl)
		pipe.SAdd(ctx, userKey, key)
		// the index lives as long as the longest session it holds
		pipe.ExpireNX(ctx, userKey, ttl)
		pipe.ExpireGT(ctx, userKey, ttl)
		return nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to save session")
	}

	return &authflow.SessionWithUser{
		Session: &authflow.Session{ID: rec.ID, UserID: rec.UserID, Token: token, Expires: rec.Expires},
		User:    user,
	}, nil
}

func (s *Store) load(ctx context.Context, token string) (*record, error) {
	data, err := s.client.Get(ctx, s.sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read session")
	}

	rec := new(record)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session")
	}
	return rec, nil
}

// DestroySession deletes the session for token, returning
// authflow.ErrSessionNotFound when it does not exist or already expired.
func (s *Store) DestroySession(ctx context.Context, token string) error {
	rec, err := s.load(ctx, token)
	if err != nil {
		return err
	}
	if rec == nil {
		return authflow.ErrSessionNotFound
	}

	key := s.sessionKey(token)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.SRem(ctx, s.userKey(rec.UserID), key)
		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete session")
	}
	return nil
}

// GetUserFromSession loads the session and reloads its owner through the
// wrapped user adapter.
func (s *Store) GetUserFromSession(ctx context.Context, token string) (*authflow.SessionWithUser, error) {
	rec, err := s.load(ctx, token)
	if err != nil || rec == nil {
		return nil, err
	}

	user, err := s.GetUserByIdentifier(ctx, rec.Identifier)
	if err != nil {
		return nil, err
	}

	return &authflow.SessionWithUser{
		Session: &authflow.Session{ID: rec.ID, UserID: rec.UserID, Token: token, Expires: rec.Expires},
		User:    user,
	}, nil
}

// DestroyUserSessions removes every session owned by userID and returns
// how many were deleted.
func (s *Store) DestroyUserSessions(ctx context.Context, userID string) (int64, error) {
	userKey := s.userKey(userID)

	keys, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to list sessions")
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var del *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to delete sessions")
	}
	return del.Val(), nil
}
