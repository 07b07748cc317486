package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
	"github.com/hitoshi/taskman/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn   func(ctx context.Context, email, password string) (string, error)
	refreshFn func(ctx context.Context, identity model.Identity) (string, error)
	logoutFn  func(ctx context.Context, identity model.Identity) error
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (string, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return "", model.NewInvalidCredentialsError()
}

func (m *mockAuthService) RefreshToken(ctx context.Context, identity model.Identity) (string, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, identity)
	}
	return "refreshed-token", nil
}

func (m *mockAuthService) Logout(ctx context.Context, identity model.Identity) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, identity)
	}
	return nil
}

type mockUserService struct {
	signupFn func(ctx context.Context, input user.SignupInput) (string, error)
	getMeFn  func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockUserService) Signup(ctx context.Context, input user.SignupInput) (string, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, input)
	}
	return "new-user-id", nil
}

func (m *mockUserService) GetMe(ctx context.Context, userID string) (*model.User, error) {
	if m.getMeFn != nil {
		return m.getMeFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockTaskService struct {
	createFn func(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error)
	listFn   func(ctx context.Context, ownerID string, q task.ListQuery) (*model.TaskPage, error)
	getFn    func(ctx context.Context, ownerID, taskID string) (*model.Task, error)
	updateFn func(ctx context.Context, ownerID, taskID string, input task.UpdateTaskInput) (*model.Task, error)
	deleteFn func(ctx context.Context, ownerID, taskID string) error
}

func (m *mockTaskService) Create(ctx context.Context, ownerID string, input task.CreateTaskInput) (*model.Task, error) {
	if m.createFn != nil {
		return m.createFn(ctx, ownerID, input)
	}
	return nil, nil
}

func (m *mockTaskService) List(ctx context.Context, ownerID string, q task.ListQuery) (*model.TaskPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, ownerID, q)
	}
	return &model.TaskPage{Tasks: []*model.Task{}}, nil
}

func (m *mockTaskService) Get(ctx context.Context, ownerID, taskID string) (*model.Task, error) {
	if m.getFn != nil {
		return m.getFn(ctx, ownerID, taskID)
	}
	return nil, model.NewTaskNotFoundError(taskID)
}

func (m *mockTaskService) Update(ctx context.Context, ownerID, taskID string, input task.UpdateTaskInput) (*model.Task, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, ownerID, taskID, input)
	}
	return nil, model.NewTaskNotFoundError(taskID)
}

func (m *mockTaskService) Delete(ctx context.Context, ownerID, taskID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, taskID)
	}
	return nil
}

var (
	_ AuthServiceInterface = (*mockAuthService)(nil)
	_ UserServiceInterface = (*mockUserService)(nil)
	_ TaskServiceInterface = (*mockTaskService)(nil)
)

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withIdentity はテスト用にリクエストコンテキストに認証済みIDを注入するヘルパー。
func withIdentity(r *http.Request, identity model.Identity) *http.Request {
	return r.WithContext(middleware.ContextWithIdentity(r.Context(), identity))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// parseErrorBody はレスポンスボディから統一エラーフォーマットをパースするヘルパー。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, status int, code string) middleware.ErrorResponseBody {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	body := parseErrorBody(t, w)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
	return body
}
