// Package client はtaskman APIのGoクライアントと、画面やCLIが利用するクライアント側の状態管理を提供する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultTimeout はリクエスト1件あたりのタイムアウト。
const DefaultTimeout = 10 * time.Second

// ErrUnauthorized はサーバーが401を返したことを示す。
// このときクライアントは保存済みトークンを破棄している。
var ErrUnauthorized = errors.New("session expired, please log in again")

// APIError はAPI呼び出しの失敗を表す。
// サーバーがエラーボディを返さなかった場合や通信エラーの場合もこの型で返す。
type APIError struct {
	StatusCode int // 通信エラーの場合は0
	Code       string
	Message    string
	Category   string
	Action     string
	Fields     map[string]string
	Err        error // 通信エラーなどの原因
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// Is は401のAPIErrorをErrUnauthorizedとして扱う。
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Notifier はAPI呼び出しの失敗を利用者に通知する。401は通知しない。
type Notifier interface {
	Notify(err error)
}

// NotifierFunc は関数をNotifierとして扱うアダプタ。
type NotifierFunc func(err error)

// Notify はf(err)を呼び出す。
func (f NotifierFunc) Notify(err error) { f(err) }

// Option はClientの生成オプション。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithNotifier はエラー通知先を設定する。
func WithNotifier(n Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithLogger はロガーを設定する。
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client はtaskman APIのHTTPクライアント。
// TokenStoreに保存されたトークンをすべてのリクエストにBearerトークンとして付与する。
// リトライは行わない。
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	notifier   Notifier
	logger     *slog.Logger

	hookMu         sync.Mutex
	onUnauthorized []func()
}

// New はClientを生成する。tokensがnilの場合はメモリ上のTokenStoreを使用する。
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tokens はClientが使用するTokenStoreを返す。
func (c *Client) Tokens() TokenStore { return c.tokens }

// OnUnauthorized は401受信時に呼び出すフックを登録する。
// フックはトークン破棄後に登録順で呼び出される。
func (c *Client) OnUnauthorized(fn func()) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// do はリクエストを送信し、2xxの場合はレスポンスボディをoutにデコードする。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	err := c.send(ctx, method, path, query, body, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		c.handleUnauthorized()
		return err
	}
	if c.notifier != nil {
		c.notifier.Notify(err)
	}
	return err
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: "リクエストの作成に失敗しました。", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &APIError{Message: "リクエストの作成に失敗しました。", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("failed to load token", slog.String("error", err.Error()))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Message: "サーバーに接続できませんでした。", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "レスポンスの解析に失敗しました。", Err: err}
	}
	return nil
}

// handleUnauthorized は保存済みトークンを破棄し、登録されたフックを呼び出す。
func (c *Client) handleUnauthorized() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn("failed to clear token", slog.String("error", err.Error()))
	}

	c.hookMu.Lock()
	hooks := append([]func(){}, c.onUnauthorized...)
	c.hookMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Code     string            `json:"code"`
		Message  string            `json:"message"`
		Category string            `json:"category"`
		Action   string            `json:"action"`
		Fields   map[string]string `json:"fields"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Category = body.Category
		apiErr.Action = body.Action
		apiErr.Fields = body.Fields
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
