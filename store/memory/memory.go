// Package memory provides thread-safe in-memory implementations of the
// user and todo stores. Suitable for testing, demos, and single-process use.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/taskbox/store"
)

// Store holds the shared state and hands out the typed stores.
type Store struct {
	mu      sync.RWMutex
	users   map[string]*store.User // keyed by id
	byEmail map[string]string      // email → id
	todos   map[string]*store.Todo // keyed by creatorID:todoID

	userStore *UserStore
	todoStore *TodoStore
}

// NewStore creates a new empty in-memory Store.
func NewStore() *Store {
	s := &Store{
		users:   make(map[string]*store.User),
		byEmail: make(map[string]string),
		todos:   make(map[string]*store.Todo),
	}
	s.userStore = &UserStore{s: s}
	s.todoStore = &TodoStore{s: s}
	return s
}

// Users returns the user store view.
func (s *Store) Users() *UserStore { return s.userStore }

// Todos returns the todo store view.
func (s *Store) Todos() *TodoStore { return s.todoStore }

func cloneUser(u *store.User) *store.User {
	cp := *u
	cp.Tokens = append([]store.AuthToken(nil), u.Tokens...)
	return &cp
}

func cloneTodo(t *store.Todo) *store.Todo {
	cp := *t
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}

// UserStore implements store.Users.
type UserStore struct {
	s *Store
}

var _ store.Users = (*UserStore)(nil)

func (us *UserStore) Create(ctx context.Context, email, passwordHash string) (*store.User, error) {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	if _, ok := us.s.byEmail[email]; ok {
		return nil, fmt.Errorf("%s: %w", email, store.ErrEmailTaken)
	}
	user := &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	us.s.users[user.ID] = user
	us.s.byEmail[email] = user.ID
	return cloneUser(user), nil
}

func (us *UserStore) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	id, ok := us.s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
	}
	return cloneUser(us.s.users[id]), nil
}

func (us *UserStore) FindByID(ctx context.Context, id string) (*store.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	user, ok := us.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
	}
	return cloneUser(user), nil
}

func (us *UserStore) FindByCredential(ctx context.Context, userID, purpose, token string) (*store.User, error) {
	us.s.mu.RLock()
	defer us.s.mu.RUnlock()
	user, ok := us.s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	if !user.HasToken(purpose, token) {
		return nil, fmt.Errorf("credential for user %s: %w", userID, store.ErrNotFound)
	}
	return cloneUser(user), nil
}

func (us *UserStore) AppendToken(ctx context.Context, userID, purpose, token string) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	user, ok := us.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	if user.HasToken(purpose, token) {
		return nil
	}
	user.Tokens = append(user.Tokens, store.AuthToken{Purpose: purpose, Token: token})
	return nil
}

func (us *UserStore) RemoveToken(ctx context.Context, userID, token string) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	user, ok := us.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
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
	return nil
}

func (us *UserStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	us.s.mu.Lock()
	defer us.s.mu.Unlock()
	user, ok := us.s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	user.PasswordHash = passwordHash
	return nil
}

// TodoStore implements store.Todos.
type TodoStore struct {
	s *Store
}

var _ store.Todos = (*TodoStore)(nil)

func todoKey(creatorID, id string) string {
	return creatorID + ":" + id
}

func (ts *TodoStore) Create(ctx context.Context, todo *store.Todo) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	ts.s.todos[todoKey(todo.CreatorID, todo.ID)] = cloneTodo(todo)
	return nil
}

func (ts *TodoStore) FindByID(ctx context.Context, creatorID, id string) (*store.Todo, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	todo, ok := ts.s.todos[todoKey(creatorID, id)]
	if !ok {
		return nil, fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
	}
	return cloneTodo(todo), nil
}

func (ts *TodoStore) ListByCreator(ctx context.Context, creatorID string) ([]*store.Todo, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	var todos []*store.Todo
	for _, todo := range ts.s.todos {
		if todo.CreatorID == creatorID {
			todos = append(todos, cloneTodo(todo))
		}
	}
	sort.Slice(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID < todos[j].ID
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

func (ts *TodoStore) Update(ctx context.Context, todo *store.Todo) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	k := todoKey(todo.CreatorID, todo.ID)
	if _, ok := ts.s.todos[k]; !ok {
		return fmt.Errorf("todo %s: %w", todo.ID, store.ErrNotFound)
	}
	ts.s.todos[k] = cloneTodo(todo)
	return nil
}

func (ts *TodoStore) Delete(ctx context.Context, creatorID, id string) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	k := todoKey(creatorID, id)
	if _, ok := ts.s.todos[k]; !ok {
		return fmt.Errorf("todo %s: %w", id, store.ErrNotFound)
	}
	delete(ts.s.todos, k)
	return nil
}
