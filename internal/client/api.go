package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// SortOrder は一覧の並び順。
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// タスクの状態。
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// User は/users/meのレスポンス。
type User struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Task はAPIが返すタスク。
type Task struct {
	ID          string     `json:"_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Pagination は一覧のページ情報。
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// TaskPage は一覧取得のレスポンス。
type TaskPage struct {
	Data       []Task     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// SignupRequest はサインアップの入力。
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateTaskRequest はタスク作成の入力。空のフィールドは送信しない。
type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Status      string  `json:"status,omitempty"`
	DueDate     string  `json:"dueDate,omitempty"`
}

// UpdateTaskRequest はタスク部分更新の入力。nilのフィールドは送信しない。
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login はアクセストークンを取得する。トークンの保存は行わない。
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp tokenResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Refresh は新しいアクセストークンを取得する。
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// Logout はサーバー側で現在のトークンを失効させる。
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// Signup はユーザーを登録し、作成されたユーザーIDを返す。
func (c *Client) Signup(ctx context.Context, req SignupRequest) (string, error) {
	var resp struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/signup", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.UserID, nil
}

// Me は認証済みユーザーの情報を取得する。
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListTasks はタスク一覧の1ページを取得する。
func (c *Client) ListTasks(ctx context.Context, page, limit int, order SortOrder) (*TaskPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if order != "" {
		q.Set("sortOrder", string(order))
	}

	var resp TaskPage
	if err := c.do(ctx, http.MethodGet, "/tasks", q, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTask はタスクを1件取得する。
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask はタスクを作成する。
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodPost, "/tasks", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask はタスクを部分更新する。
func (c *Client) UpdateTask(ctx context.Context, id string, req UpdateTaskRequest) (*Task, error) {
	var t Task
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask はタスクを削除する。
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil, nil)
}
