package client

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/task"
	"github.com/hitoshi/taskman/internal/user"
)

// newTestServer はメモリリポジトリで動くAPIサーバーを起動する。
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	userRepo := repository.NewMemoryUserRepo()
	hasher := auth.NewPasswordHasher(4)
	authService := auth.NewService(
		userRepo,
		auth.NewTokenManager("client-test-secret-32bytes-long!", time.Hour, "taskman"),
		hasher,
		auth.NewMemoryRevocationStore(),
		nil,
	)

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(6000, 600))
	t.Cleanup(rl.Stop)

	server := httptest.NewServer(handler.NewRouter(&handler.RouterDeps{
		TokenVerifier: authService,
		RateLimiter:   rl,
		AuthService:   authService,
		UserService:   user.NewService(userRepo, hasher, nil, nil),
		TaskService:   task.NewService(repository.NewMemoryTaskRepo(), nil, nil, 0),
	}))
	t.Cleanup(server.Close)
	return server
}

// loggedInClient はユーザーを登録してログイン済みのClientとSessionを返す。
func loggedInClient(t *testing.T, serverURL, name string, opts ...Option) (*Client, *Session) {
	t.Helper()
	ctx := context.Background()
	c := New(serverURL, NewMemoryTokenStore(), opts...)
	s := NewSession(c)

	_, err := s.Signup(ctx, SignupRequest{Username: name, Email: name + "@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = s.Login(ctx, name+"@example.com", "secret1")
	require.NoError(t, err)
	return c, s
}

func createTasks(t *testing.T, c *Client, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := c.CreateTask(context.Background(), CreateTaskRequest{Title: fmt.Sprintf("task %02d", i)})
		require.NoError(t, err)
	}
}

func strPtr(s string) *string { return &s }
