package bbolt

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/taskbox/store"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "taskbox-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("NewStore failed: %v", err)
	}
	return s, func() {
		db.Close()
		os.Remove(path)
	}
}

func TestUserStore(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	users := s.Users()

	user, err := users.Create(ctx, "a@x.com", "hash-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := users.Create(ctx, "a@x.com", "hash-2")
		if !errors.Is(err, store.ErrEmailTaken) {
			t.Errorf("expected ErrEmailTaken, got %v", err)
		}
		// The rejected create must not clobber the index entry.
		got, err := users.FindByEmail(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if got.ID != user.ID {
			t.Errorf("index points at %s, want %s", got.ID, user.ID)
		}
	})

	t.Run("lookups", func(t *testing.T) {
		got, err := users.FindByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got.PasswordHash != "hash-1" {
			t.Errorf("expected hash-1, got %s", got.PasswordHash)
		}
		if _, err := users.FindByEmail(ctx, "nobody@x.com"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("token lifecycle", func(t *testing.T) {
		if err := users.AppendToken(ctx, user.ID, "auth", "tok-1"); err != nil {
			t.Fatalf("AppendToken failed: %v", err)
		}
		if err := users.AppendToken(ctx, user.ID, "auth", "tok-1"); err != nil {
			t.Fatalf("AppendToken (repeat) failed: %v", err)
		}
		got, _ := users.FindByID(ctx, user.ID)
		if len(got.Tokens) != 1 {
			t.Errorf("expected 1 token, got %d", len(got.Tokens))
		}

		if _, err := users.FindByCredential(ctx, user.ID, "auth", "tok-1"); err != nil {
			t.Fatalf("FindByCredential failed: %v", err)
		}
		if _, err := users.FindByCredential(ctx, user.ID, "auth", "forged"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := users.RemoveToken(ctx, user.ID, "tok-1"); err != nil {
			t.Fatalf("RemoveToken failed: %v", err)
		}
		if err := users.RemoveToken(ctx, user.ID, "tok-1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound removing missing token, got %v", err)
		}
	})

	t.Run("update password", func(t *testing.T) {
		if err := users.UpdatePassword(ctx, user.ID, "hash-next"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		got, _ := users.FindByID(ctx, user.ID)
		if got.PasswordHash != "hash-next" {
			t.Errorf("expected hash-next, got %s", got.PasswordHash)
		}
	})
}

func TestTodoStore(t *testing.T) {
	s, cleanup := newTestStore(t)
	defer cleanup()

	ctx := context.Background()
	todos := s.Todos()
	base := time.Now().UTC().Truncate(time.Millisecond)

	seed := []*store.Todo{
		{ID: "t2", Text: "second", CreatorID: "alice", CreatedAt: base.Add(time.Second)},
		{ID: "t1", Text: "first", CreatorID: "alice", CreatedAt: base},
		{ID: "t9", Text: "bob's", CreatorID: "bob", CreatedAt: base},
		// A creator ID sharing a prefix with "alice" exercises the cursor
		// scan boundary: "alicorn:t1" must not match the "alice:" prefix.
		{ID: "t1", Text: "not alice's", CreatorID: "alicorn", CreatedAt: base},
	}
	for _, todo := range seed {
		if err := todos.Create(ctx, todo); err != nil {
			t.Fatalf("Create %s failed: %v", todo.ID, err)
		}
	}

	t.Run("list is scoped and ordered", func(t *testing.T) {
		list, err := todos.ListByCreator(ctx, "alice")
		if err != nil {
			t.Fatalf("ListByCreator failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 todos, got %d", len(list))
		}
		if list[0].ID != "t1" || list[1].ID != "t2" {
			t.Errorf("expected creation order t1,t2, got %s,%s", list[0].ID, list[1].ID)
		}
	})

	t.Run("empty list", func(t *testing.T) {
		list, err := todos.ListByCreator(ctx, "nobody")
		if err != nil {
			t.Fatalf("ListByCreator failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected 0 todos, got %d", len(list))
		}
	})

	t.Run("find is scoped to creator", func(t *testing.T) {
		if _, err := todos.FindByID(ctx, "alice", "t9"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound for foreign todo, got %v", err)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		at := base.Add(time.Minute)
		todo := &store.Todo{ID: "t1", Text: "first (done)", Completed: true, CompletedAt: &at, CreatorID: "alice", CreatedAt: base}
		if err := todos.Update(ctx, todo); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		got, err := todos.FindByID(ctx, "alice", "t1")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !got.Completed || got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
			t.Errorf("unexpected state after update: %+v", got)
		}

		if err := todos.Update(ctx, &store.Todo{ID: "missing", CreatorID: "alice"}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		if err := todos.Delete(ctx, "alice", "t1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := todos.Delete(ctx, "alice", "t1"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestNewStoreFromFile(t *testing.T) {
	f, err := os.CreateTemp("", "taskbox-file-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()
	defer os.Remove(path)

	s, err := NewStoreFromFile(path, nil)
	if err != nil {
		t.Fatalf("NewStoreFromFile failed: %v", err)
	}
	defer s.Close()

	if _, err := s.Users().Create(context.Background(), "a@x.com", "h"); err != nil {
		t.Errorf("Create on fresh file failed: %v", err)
	}

	if _, err := NewStoreFromFile("/nonexistent/path/to/db", nil); err == nil {
		t.Error("expected error for invalid path")
	}
}
