// Package auth はパスワード認証とアクセストークンの発行・検証・失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	tokens      *TokenManager
	hasher      *PasswordHasher
	revocations RevocationStore
	metrics     metrics.AuthRecorder

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
// revocationsがnilの場合はプロセス内メモリの失効ストアを使用する。
func NewService(
	userRepo repository.UserRepository,
	tokens *TokenManager,
	hasher *PasswordHasher,
	revocations RevocationStore,
	recorder metrics.AuthRecorder,
) *Service {
	if revocations == nil {
		revocations = NewMemoryRevocationStore()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		userRepo:    userRepo,
		tokens:      tokens,
		hasher:      hasher,
		revocations: revocations,
		metrics:     recorder,
	}
}

// NormalizeEmail はメールアドレスを前後空白除去・小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials はメールアドレスとパスワードを照合し、一致したユーザーを返す。
// 未登録メールアドレスでもダミーハッシュとの照合を行い、失敗理由による応答時間差をなくす。
func (s *Service) ValidateCredentials(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil {
		s.hasher.Compare(s.getDummyHash(), password)
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// IssueToken はユーザーのアクセストークンを発行する。
func (s *Service) IssueToken(user *model.User) (string, error) {
	token, _, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", err
	}
	return token, nil
}

// Login は認証に成功した場合にアクセストークンを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.ValidateCredentials(ctx, email, password)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordLogin(false)
			slog.Info("login failed", slog.String("reason", apiErr.Code))
		}
		return "", err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", err
	}

	s.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return token, nil
}

// RefreshToken は認証済みユーザーに新しいアクセストークンを発行する。
// ユーザーが削除されている場合は認証エラーを返す。
func (s *Service) RefreshToken(ctx context.Context, identity model.Identity) (string, error) {
	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return "", model.NewUnauthorizedError()
	}
	return s.IssueToken(user)
}

// VerifyToken はトークンを検証し、認証済みユーザー情報を返す。
// 署名・アルゴリズム・有効期限・発行者・失効のいずれかが不正な場合は認証エラーを返す。
func (s *Service) VerifyToken(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		slog.Debug("token rejected", slog.String("error", err.Error()))
		return nil, model.NewUnauthorizedError()
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, model.NewUnauthorizedError()
	}

	return &model.Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout はトークンを有効期限まで失効させる。
func (s *Service) Logout(ctx context.Context, identity model.Identity) error {
	if identity.TokenID == "" {
		return fmt.Errorf("token ID is required")
	}

	if err := s.revocations.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.RecordTokenRevoked()
	slog.Info("user logged out", slog.String("user_id", identity.UserID))
	return nil
}

// getDummyHash は未登録ユーザー照合用のハッシュを初回のみ生成して返す。
func (s *Service) getDummyHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("taskman-dummy-password" + time.Now().String())
		if err != nil {
			slog.Error("failed to generate dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
