package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LoginStoresTokenAndUser(t *testing.T) {
	server := newTestServer(t)
	c, s := loggedInClient(t, server.URL, "alice")

	token, err := c.Tokens().Load()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	require.True(t, s.IsAuthenticated())
	assert.Equal(t, "alice", s.User().Username)
	assert.Equal(t, "alice@example.com", s.User().Email)
}

func TestSession_LoginWrongPassword(t *testing.T) {
	server := newTestServer(t)
	_, _ = loggedInClient(t, server.URL, "alice")

	c := New(server.URL, NewMemoryTokenStore())
	s := NewSession(c)

	_, err := s.Login(context.Background(), "alice@example.com", "wrong-password")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	assert.False(t, s.IsAuthenticated())
}

func TestSession_InitRestoresFromStoredToken(t *testing.T) {
	server := newTestServer(t)
	c, _ := loggedInClient(t, server.URL, "alice")

	restored := NewSession(New(server.URL, c.Tokens()))
	require.NoError(t, restored.Init(context.Background()))

	require.True(t, restored.IsAuthenticated())
	assert.Equal(t, "alice", restored.User().Username)
}

func TestSession_InitWithoutToken(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	s := NewSession(New(server.URL, NewMemoryTokenStore()))
	require.NoError(t, s.Init(context.Background()))

	assert.False(t, s.IsAuthenticated())
	assert.Zero(t, calls, "no request should be sent without a token")
}

func TestSession_InitWithStaleTokenClearsIt(t *testing.T) {
	server := newTestServer(t)
	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("not-a-valid-token"))

	s := NewSession(New(server.URL, tokens))
	require.NoError(t, s.Init(context.Background()))

	assert.False(t, s.IsAuthenticated())
	token, _ := tokens.Load()
	assert.Empty(t, token)
}

func TestSession_LogoutRevokesServerSide(t *testing.T) {
	server := newTestServer(t)
	c, s := loggedInClient(t, server.URL, "alice")
	ctx := context.Background()

	revoked, err := c.Tokens().Load()
	require.NoError(t, err)

	require.NoError(t, s.Logout(ctx))
	assert.False(t, s.IsAuthenticated())
	token, _ := c.Tokens().Load()
	assert.Empty(t, token)

	// 失効したトークンを再利用しても401になる
	other := New(server.URL, NewMemoryTokenStore())
	require.NoError(t, other.Tokens().Save(revoked))
	_, err = other.Me(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSession_LogoutWhenServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	tokens := NewMemoryTokenStore()
	require.NoError(t, tokens.Save("token"))
	s := NewSession(New(url, tokens))

	require.NoError(t, s.Logout(context.Background()))
	token, _ := tokens.Load()
	assert.Empty(t, token)
}

func TestSession_TornDownOn401(t *testing.T) {
	server := newTestServer(t)
	c, s := loggedInClient(t, server.URL, "alice")
	ctx := context.Background()

	// サーバー側でトークンを失効させ、ローカルには残しておく
	token, _ := c.Tokens().Load()
	require.NoError(t, c.Logout(ctx))
	require.NoError(t, c.Tokens().Save(token))
	require.True(t, s.IsAuthenticated())

	_, err := c.ListTasks(ctx, 1, 10, SortDesc)
	require.ErrorIs(t, err, ErrUnauthorized)

	assert.False(t, s.IsAuthenticated())
	stored, _ := c.Tokens().Load()
	assert.Empty(t, stored)
}
