package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Session はログイン状態を管理する。
// Clientが401を受け取るとセッションは自動的に破棄される。
type Session struct {
	client *Client

	mu   sync.RWMutex
	user *User
}

// NewSession はSessionを生成し、Clientの401フックに登録する。
func NewSession(c *Client) *Session {
	s := &Session{client: c}
	c.OnUnauthorized(s.teardown)
	return s
}

// Init は保存済みトークンでユーザー情報を取得してセッションを復元する。
// トークンが無効な場合は破棄し、未ログイン状態のままnilを返す。
func (s *Session) Init(ctx context.Context) error {
	token, err := s.client.tokens.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return nil
	}

	u, err := s.client.Me(ctx)
	if err != nil {
		slog.Debug("stored token rejected", slog.String("error", err.Error()))
		if clearErr := s.client.tokens.Clear(); clearErr != nil {
			return fmt.Errorf("failed to clear token: %w", clearErr)
		}
		s.setUser(nil)
		return nil
	}

	s.setUser(u)
	return nil
}

// Login はログインしてトークンを保存し、ユーザー情報を取得する。
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.client.tokens.Save(token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}

	u, err := s.client.Me(ctx)
	if err != nil {
		_ = s.client.tokens.Clear()
		return nil, err
	}

	s.setUser(u)
	return u, nil
}

// Signup はユーザーを登録する。登録後もログインは行わない。
func (s *Session) Signup(ctx context.Context, req SignupRequest) (string, error) {
	return s.client.Signup(ctx, req)
}

// Logout はサーバー側でトークンを失効させ、ローカルのセッションを破棄する。
// サーバー側の失効に失敗してもローカルのセッションは破棄する。
func (s *Session) Logout(ctx context.Context) error {
	token, err := s.client.tokens.Load()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}
	if token != "" {
		if err := s.client.Logout(ctx); err != nil && !errors.Is(err, ErrUnauthorized) {
			slog.Warn("server-side logout failed", slog.String("error", err.Error()))
		}
	}

	if err := s.client.tokens.Clear(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	s.setUser(nil)
	return nil
}

// User はログイン中のユーザーを返す。未ログインの場合はnil。
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// IsAuthenticated はユーザー情報を取得済みかどうかを返す。
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Session) teardown() {
	s.setUser(nil)
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}
