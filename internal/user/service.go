// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/validation"
)

// PasswordHasher はパスワードをハッシュ化するインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SignupInput はサインアップの入力値。
type SignupInput struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// Service はユーザー管理のサービス層。
// サインアップと自身のプロフィール取得を提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	validator *validation.Validator
	metrics   metrics.AuthRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	validator *validation.Validator,
	recorder metrics.AuthRecorder,
) *Service {
	if validator == nil {
		validator = validation.New()
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		validator: validator,
		metrics:   recorder,
	}
}

// Signup はユーザーを登録し、新しいユーザーIDを返す。
// メールアドレスは正規化して保存する。登録済みの場合は上書きせずConflictエラーを返す。
func (s *Service) Signup(ctx context.Context, input SignupInput) (string, error) {
	input.Email = auth.NormalizeEmail(input.Email)

	if err := s.validator.Struct(input).Err(); err != nil {
		s.metrics.RecordSignup(false)
		return "", err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordSignup(false)
			return "", model.NewEmailAlreadyRegisteredError()
		}
		return "", fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	s.metrics.RecordSignup(true)
	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	return user.ID, nil
}

// GetMe は認証済みユーザー自身の情報を返す。
func (s *Service) GetMe(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}
