package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmcleod/taskbox/store"
)

func todoResponse(todo *store.Todo) TodoResponse {
	resp := TodoResponse{
		ID:        todo.ID,
		Text:      todo.Text,
		Completed: todo.Completed,
		CreatedAt: todo.CreatedAt.Unix(),
	}
	if todo.CompletedAt != nil {
		at := todo.CompletedAt.Unix()
		resp.CompletedAt = &at
	}
	return resp
}

// CreateTodo handles POST /todos.
func (a *API) CreateTodo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateTodoRequest](w, r)
	if !ok {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	user := userFromContext(r.Context())
	todo := &store.Todo{
		ID:        uuid.NewString(),
		Text:      text,
		CreatorID: user.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.todos.Create(r.Context(), todo); err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditTodoCreated, r, user.ID)
	writeJSON(w, http.StatusCreated, todoResponse(todo))
}

// ListTodos handles GET /todos. Only the caller's own todos are visible.
func (a *API) ListTodos(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	todos, err := a.todos.ListByCreator(r.Context(), user.ID)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	resp := ListTodosResponse{Todos: make([]TodoResponse, 0, len(todos))}
	for _, todo := range todos {
		resp.Todos = append(resp.Todos, todoResponse(todo))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTodo handles GET /todos/{todoID}. A todo owned by someone else is
// indistinguishable from one that does not exist.
func (a *API) GetTodo(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	todo, err := a.todos.FindByID(r.Context(), user.ID, chi.URLParam(r, "todoID"))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, todoResponse(todo))
}

// UpdateTodo handles PATCH /todos/{todoID}. CompletedAt is maintained
// server-side: set when completed flips true, cleared when it flips false.
func (a *API) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[UpdateTodoRequest](w, r)
	if !ok {
		return
	}

	user := userFromContext(r.Context())
	todo, err := a.todos.FindByID(r.Context(), user.ID, chi.URLParam(r, "todoID"))
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	if req.Text != nil {
		text := strings.TrimSpace(*req.Text)
		if text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		todo.Text = text
	}
	if req.Completed != nil {
		todo.Completed = *req.Completed
		if todo.Completed {
			now := time.Now().UTC()
			todo.CompletedAt = &now
		} else {
			todo.CompletedAt = nil
		}
	}

	if err := a.todos.Update(r.Context(), todo); err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditTodoUpdated, r, user.ID)
	writeJSON(w, http.StatusOK, todoResponse(todo))
}

// DeleteTodo handles DELETE /todos/{todoID}.
func (a *API) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	todo, err := a.todos.FindByID(r.Context(), user.ID, chi.URLParam(r, "todoID"))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	if err := a.todos.Delete(r.Context(), user.ID, todo.ID); err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditTodoDeleted, r, user.ID)
	writeJSON(w, http.StatusOK, todoResponse(todo))
}
