package api

// CreateUserRequest is the JSON body for POST /users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public shape of a user. It carries the id and email
// only — never the password hash or the token list.
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// ChangePasswordRequest is the JSON body for PUT /users/me/password.
type ChangePasswordRequest struct {
	Password string `json:"password"`
}

// CreateTodoRequest is the JSON body for POST /todos.
type CreateTodoRequest struct {
	Text string `json:"text"`
}

// UpdateTodoRequest is the JSON body for PATCH /todos/{todoID}. Pointer
// fields distinguish "absent" from zero values.
type UpdateTodoRequest struct {
	Text      *string `json:"text,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// TodoResponse is the public shape of a todo.
type TodoResponse struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Completed   bool   `json:"completed"`
	CompletedAt *int64 `json:"completed_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// ListTodosResponse is returned from GET /todos.
type ListTodosResponse struct {
	Todos []TodoResponse `json:"todos"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
