// Package bunstore persists users and sessions with bun. It is tested on
// sqlite and uses only portable SQL.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:auth_users,alias:usr"`

	ID           string         `bun:"id,pk"`
	Identifier   string         `bun:"identifier,notnull,unique"`
	Email        string         `bun:"email"`
	FirstName    string         `bun:"first_name"`
	LastName     string         `bun:"last_name"`
	Image        string         `bun:"image"`
	Status       string         `bun:"status"`
	PasswordHash string         `bun:"password_hash"`
	Metadata     map[string]any `bun:"metadata"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:ses"`

	ID        string      `bun:"id,pk"`
	Token     string      `bun:"token,notnull,unique"`
	UserID    string      `bun:"user_id,notnull"`
	Expires   time.Time   `bun:"expires,notnull"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	User      *userRecord `bun:"rel:belongs-to,join:user_id=id"`
}

// Store implements authflow.SessionAdapter on a bun database
type Store struct {
	db         bun.IDB
	identifier string
}

var _ authflow.SessionAdapter = (*Store)(nil)

// Option configures a Store
type Option func(*Store)

// WithIdentifier sets the user field stored in the unique identifier
// column, "email" by default. It must match the engine configuration.
func WithIdentifier(field string) Option {
	return func(s *Store) {
		if field != "" {
			s.identifier = field
		}
	}
}

// New creates a Store. db may be a *bun.DB or a bun.Tx.
func New(db bun.IDB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		identifier: authflow.DefaultIdentifier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// CreateSchema creates the user and session tables when missing
func (s *Store) CreateSchema(ctx context.Context) error {
	models := []any{(*userRecord)(nil), (*sessionRecord)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth tables")
		}
	}

	_, err := s.db.NewCreateIndex().
		Model((*sessionRecord)(nil)).
		Index("auth_sessions_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create auth indexes")
	}
	return nil
}

func (s *Store) GetUserByIdentifier(ctx context.Context, identifier string) (*authflow.User, error) {
	record := new(userRecord)

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.identifier = ?", identifier).
		Limit(1).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query user")
	}

	return record.toUser(), nil
}

// CreateUser inserts user. A duplicate identifier returns
// authflow.ErrUserExists.
func (s *Store) CreateUser(ctx context.Context, user *authflow.User) (*authflow.User, error) {
	record := fromUser(user, s.identifier)
	if record.Identifier == "" {
		return nil, goerrors.New("user has no value for identifier field "+s.identifier, goerrors.CategoryValidation)
	}

	if _, err := s.db.NewInsert().Model(record).Returning("NULL").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, authflow.ErrUserExists
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert user")
	}

	return record.toUser(), nil
}

// CreateSession stores a session for token. Re-issuing an identical token
// refreshes the existing row.
func (s *Store) CreateSession(ctx context.Context, user *authflow.User, token string, expires time.Time) (*authflow.SessionWithUser, error) {
	record := &sessionRecord{
		ID:      uuid.NewString(),
		Token:   token,
		UserID:  user.ID,
		Expires: expires.UTC(),
	}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (token) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("expires = EXCLUDED.expires").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert session")
	}

	return &authflow.SessionWithUser{Session: record.toSession(), User: user}, nil
}

// DestroySession deletes the session for token, returning
// authflow.ErrSessionNotFound when no row matched.
func (s *Store) DestroySession(ctx context.Context, token string) error {
	res, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authflow.ErrSessionNotFound
	}
	return nil
}

func (s *Store) GetUserFromSession(ctx context.Context, token string) (*authflow.SessionWithUser, error) {
	record := new(sessionRecord)

	err := s.db.NewSelect().
		Model(record).
		Relation("User").
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query session")
	}

	out := &authflow.SessionWithUser{Session: record.toSession()}
	if record.User != nil && record.User.ID != "" {
		out.User = record.User.toUser()
	}
	return out, nil
}

// PurgeExpired removes sessions that expired before now
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("expires <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge sessions")
	}
	return res.RowsAffected()
}

func fromUser(u *authflow.User, identifier string) *userRecord {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	return &userRecord{
		ID:           id,
		Identifier:   u.IdentifierValue(identifier),
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Image:        u.Image,
		Status:       u.Status,
		PasswordHash: u.HashedPassword,
		Metadata:     u.Fields,
	}
}

func (r *userRecord) toUser() *authflow.User {
	return &authflow.User{
		ID:             r.ID,
		Email:          r.Email,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Image:          r.Image,
		Status:         r.Status,
		HashedPassword: r.PasswordHash,
		Fields:         r.Metadata,
	}
}

func (r *sessionRecord) toSession() *authflow.Session {
	return &authflow.Session{
		ID:      r.ID,
		UserID:  r.UserID,
		Token:   r.Token,
		Expires: r.Expires,
	}
}

// isUniqueViolation matches the messages of the sqlite drivers behind
// sqliteshim (modernc.org/sqlite and mattn/go-sqlite3) and of postgres
// drivers (bun pgdriver, pgx), which also carry SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
