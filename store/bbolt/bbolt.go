// Package bbolt provides a BBolt-backed implementation of the user and
// todo stores.
package bbolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/taskbox/store"
)

var (
	bucketUsers      = []byte("users")
	bucketUsersEmail = []byte("users_email")
	bucketTodos      = []byte("todos")
)

// Store owns the BBolt database handle and hands out the typed stores.
//
// Users are keyed by id in the users bucket, with a separate email→id
// index bucket enforcing uniqueness inside the same write transaction.
// Todos are keyed by "creatorID:todoID" so a cursor prefix scan lists one
// user's todos without touching anyone else's.
type Store struct {
	db    *bbolt.DB
	users *UserStore
	todos *TodoStore
}

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUsersEmail, bucketTodos} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &Store{
		db:    db,
		users: &UserStore{db: db},
		todos: &TodoStore{db: db},
	}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Users returns the user store view.
func (s *Store) Users() *UserStore { return s.users }

// Todos returns the todo store view.
func (s *Store) Todos() *TodoStore { return s.todos }

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UserStore implements store.Users.
type UserStore struct {
	db *bbolt.DB
}

var _ store.Users = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (*store.User, error) {
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketUsersEmail)
		if idx.Get([]byte(email)) != nil {
			return fmt.Errorf("%s: %w", email, store.ErrEmailTaken)
		}
		if err := idx.Put([]byte(email), []byte(user.ID)); err != nil {
			return err
		}
		return putUser(tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	var user *store.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketUsersEmail).Get([]byte(email))
		if id == nil {
			return fmt.Errorf("user %s: %w", email, store.ErrNotFound)
		}
		var err error
		user, err = getUser(tx, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*store.User, error) {
	var user *store.User
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		user, err = getUser(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) FindByCredential(ctx context.Context, userID, purpose, token string) (*store.User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasToken(purpose, token) {
		return nil, fmt.Errorf("credential for user %s: %w", userID, store.ErrNotFound)
	}
	return user, nil
}

// AppendToken read-modify-writes the user record inside a single update
// transaction; BBolt serializes writers, so concurrent appends and removals
// on the same user cannot lose updates.
func (s *UserStore) AppendToken(ctx context.Context, userID, purpose, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		if user.HasToken(purpose, token) {
			return nil
		}
		user.Tokens = append(user.Tokens, store.AuthToken{Purpose: purpose, Token: token})
		return putUser(tx, user)
	})
}

func (s *UserStore) RemoveToken(ctx context.Context, userID, token string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		kept := user.Tokens[:0]
		removed := false
		for _, t := range user.Tokens {
			if t.Token == token {
				removed = true
				continue
			}
			kept = append(kept, t)
		}
		if !removed {
			return fmt.Errorf("token for user %s: %w", userID, store.ErrNotFound)
		}
		user.Tokens = kept
		return putUser(tx, user)
	})
}

func (s *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		user, err := getUser(tx, userID)
		if err != nil {
			return err
		}
		user.PasswordHash = passwordHash
		return putUser(tx, user)
	})
}

func putUser(tx *bbolt.Tx, user *store.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketUsers).Put([]byte(user.ID), data)
}

func getUser(tx *bbolt.Tx, id string) (*store.User, error) {
	data := tx.Bucket(bucketUsers).Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	var user store.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TodoStore implements store.Todos.
type TodoStore struct {
	db *bbolt.DB
}

var _ store.Todos = (*TodoStore)(nil)

func todoKey(creatorID, id string) []byte {
	return []byte(creatorID + ":" + id)
}

func (s *TodoStore) Create(ctx context.Context, todo *store.Todo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(todo)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTodos).Put(todoKey(todo.CreatorID, todo.ID), data)
	})
}

func (s *TodoStore) FindByID(ctx context.Context, creatorID, id string) (*store.Todo, error) {
	var todo store.Todo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTodos).Get(todoKey(creatorID, id))
		if data == nil {
			return fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
		}
		return json.Unmarshal(data, &todo)
	})
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

func (s *TodoStore) ListByCreator(ctx context.Context, creatorID string) ([]*store.Todo, error) {
	var todos []*store.Todo
	prefix := []byte(creatorID + ":")
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketTodos).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var todo store.Todo
			if err := json.Unmarshal(v, &todo); err != nil {
				return err
			}
			todos = append(todos, &todo)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID < todos[j].ID
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

func (s *TodoStore) Update(ctx context.Context, todo *store.Todo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTodos)
		key := todoKey(todo.CreatorID, todo.ID)
		if b.Get(key) == nil {
			return fmt.Errorf("todo %s: %w", todo.ID, store.ErrNotFound)
		}
		data, err := json.Marshal(todo)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *TodoStore) Delete(ctx context.Context, creatorID, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTodos)
		key := todoKey(creatorID, id)
		if b.Get(key) == nil {
			return fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
		}
		return b.Delete(key)
	})
}
