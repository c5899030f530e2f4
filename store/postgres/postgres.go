// Package postgres implements the user and todo stores backed by PostgreSQL.
//
// Tokens live in their own table so that append and remove are single
// INSERT/DELETE statements — the database's row-level atomicity stands in
// for the add-to-set/remove-from-set semantics the BBolt backend gets from
// its write transaction. Email uniqueness is a UNIQUE constraint, mapped to
// store.ErrEmailTaken on violation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/taskbox/store"
)

// Store owns the connection pool and hands out the typed stores.
type Store struct {
	pool  *pgxpool.Pool
	users *UserStore
	todos *TodoStore
}

// NewStore returns a Store backed by the given pgx connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:  pool,
		users: &UserStore{pool: pool},
		todos: &TodoStore{pool: pool},
	}
}

// NewStoreFromDSN creates a connection pool from a DSN string, ensures the
// schema exists, and returns a new Store.
func NewStoreFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewStore(pool), nil
}

// Users returns the user store view.
func (s *Store) Users() *UserStore { return s.users }

// Todos returns the todo store view.
func (s *Store) Todos() *TodoStore { return s.todos }

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not already exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            UUID PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS user_tokens (
	user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	purpose    TEXT NOT NULL,
	token      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, purpose, token)
);
CREATE TABLE IF NOT EXISTS todos (
	id           UUID PRIMARY KEY,
	creator_id   UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	text         TEXT NOT NULL,
	completed    BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS todos_creator_idx ON todos (creator_id);
`
	_, err := pool.Exec(ctx, schema)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}

// UserStore implements store.Users.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ store.Users = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*store.User, error) {
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", email, store.ErrEmailTaken)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (s *UserStore) findOne(ctx context.Context, where string, arg any) (*store.User, error) {
	var user store.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE `+where, arg).
		Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %v: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT purpose, token FROM user_tokens WHERE user_id = $1 ORDER BY created_at, token`,
		user.ID)
	if err != nil {
		return nil, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t store.AuthToken
		if err := rows.Scan(&t.Purpose, &t.Token); err != nil {
			return nil, err
		}
		user.Tokens = append(user.Tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.findOne(ctx, `email = $1`, email)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*store.User, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *UserStore) FindByCredential(ctx context.Context, userID, purpose, token string) (*store.User, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_tokens WHERE user_id = $1 AND purpose = $2 AND token = $3)`,
		userID, purpose, token).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("credential for user %s: %w", userID, store.ErrNotFound)
	}
	return s.FindByID(ctx, userID)
}

func (s *UserStore) AppendToken(ctx context.Context, userID, purpose, token string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_tokens (user_id, purpose, token) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		userID, purpose, token)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
		}
		return fmt.Errorf("appending token: %w", err)
	}
	return nil
}

func (s *UserStore) RemoveToken(ctx context.Context, userID, token string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM user_tokens WHERE user_id = $1 AND token = $2`,
		userID, token)
	if err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("token for user %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

// TodoStore implements store.Todos.
type TodoStore struct {
	pool *pgxpool.Pool
}

var _ store.Todos = (*TodoStore)(nil)

func (s *TodoStore) Create(ctx context.Context, todo *store.Todo) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO todos (id, creator_id, text, completed, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		todo.ID, todo.CreatorID, todo.Text, todo.Completed, todo.CompletedAt, todo.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating todo: %w", err)
	}
	return nil
}

func (s *TodoStore) FindByID(ctx context.Context, creatorID, id string) (*store.Todo, error) {
	var todo store.Todo
	err := s.pool.QueryRow(ctx,
		`SELECT id, creator_id, text, completed, completed_at, created_at
		 FROM todos WHERE creator_id = $1 AND id = $2`,
		creatorID, id).
		Scan(&todo.ID, &todo.CreatorID, &todo.Text, &todo.Completed, &todo.CompletedAt, &todo.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("querying todo: %w", err)
	}
	return &todo, nil
}

func (s *TodoStore) ListByCreator(ctx context.Context, creatorID string) ([]*store.Todo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, creator_id, text, completed, completed_at, created_at
		 FROM todos WHERE creator_id = $1 ORDER BY created_at, id`,
		creatorID)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	var todos []*store.Todo
	for rows.Next() {
		var todo store.Todo
		if err := rows.Scan(&todo.ID, &todo.CreatorID, &todo.Text, &todo.Completed,
			&todo.CompletedAt, &todo.CreatedAt); err != nil {
			return nil, err
		}
		todos = append(todos, &todo)
	}
	return todos, rows.Err()
}

func (s *TodoStore) Update(ctx context.Context, todo *store.Todo) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE todos SET text = $3, completed = $4, completed_at = $5
		 WHERE creator_id = $1 AND id = $2`,
		todo.CreatorID, todo.ID, todo.Text, todo.Completed, todo.CompletedAt)
	if err != nil {
		return fmt.Errorf("updating todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("todo %s: %w", todo.ID, store.ErrNotFound)
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, creatorID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM todos WHERE creator_id = $1 AND id = $2`,
		creatorID, id)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
	}
	return nil
}
