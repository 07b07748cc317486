package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"u1","username":"alice","email":"alice@example.com"}`))
	}))
	defer server.Close()

	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("abc.def.ghi"))
	c := New(server.URL+"/", tokens)

	u, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc.def.ghi", gotAuth)
	assert.Equal(t, "alice", u.Username)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	var hadHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadHeader = r.Header["Authorization"]
		_, _ = w.Write([]byte(`{"access_token":"t"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, nil).Login(context.Background(), "a@example.com", "secret1")
	require.NoError(t, err)
	assert.False(t, hadHeader)
}

func TestClient_UnauthorizedClearsTokenAndSkipsNotifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"UNAUTHORIZED","message":"認証が必要です。","category":"auth","action":"ログインしてください。"}`))
	}))
	defer server.Close()

	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("expired"))

	var notified, hooked int32
	c := New(server.URL, tokens, WithNotifier(NotifierFunc(func(error) { atomic.AddInt32(&notified, 1) })))
	c.OnUnauthorized(func() { atomic.AddInt32(&hooked, 1) })

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)

	token, _ := tokens.Load()
	assert.Empty(t, token)
	assert.EqualValues(t, 0, atomic.LoadInt32(&notified))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hooked))
}

func TestClient_OtherErrorsNotify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"VALIDATION_FAILED","message":"入力内容に誤りがあります。","category":"validation","action":"修正してください。","fields":{"title":"必須です。"}}`))
	}))
	defer server.Close()

	var got error
	c := New(server.URL, nil, WithNotifier(NotifierFunc(func(err error) { got = err })))

	_, err := c.CreateTask(context.Background(), CreateTaskRequest{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", apiErr.Code)
	assert.Equal(t, map[string]string{"title": "必須です。"}, apiErr.Fields)
	assert.Same(t, apiErr, got)
}

func TestClient_NonJSONErrorFallsBackToStatusText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer server.Close()

	err := New(server.URL, nil).DeleteTask(context.Background(), "x")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestClient_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	var notified bool
	c := New(url, nil, WithNotifier(NotifierFunc(func(error) { notified = true })))

	_, err := c.Me(context.Background())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.NotNil(t, apiErr.Unwrap())
	assert.True(t, notified)
}

func TestClient_AgainstServer(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")
	ctx := context.Background()

	created, err := c.CreateTask(ctx, CreateTaskRequest{Title: "Write report", Description: strPtr("quarterly"), DueDate: "2026-05-01"})
	require.NoError(t, err)
	assert.Equal(t, StatusTodo, created.Status)
	require.NotNil(t, created.DueDate)

	got, err := c.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	updated, err := c.UpdateTask(ctx, created.ID, UpdateTaskRequest{Status: strPtr(StatusDone)})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, updated.Status)
	assert.Equal(t, "Write report", updated.Title)

	token, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	require.NoError(t, c.DeleteTask(ctx, created.ID))

	_, err = c.GetTask(ctx, created.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "TASK_NOT_FOUND", apiErr.Code)
}
