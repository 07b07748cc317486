package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Signup(ctx context.Context, input user.SignupInput) (string, error)
	GetMe(ctx context.Context, userID string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Signup はユーザーを登録する。
// POST /users/signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var input user.SignupInput
	if err := decodeJSONBody(w, r, &input); err != nil {
		handleServiceError(w, err)
		return
	}

	userID, err := h.service.Signup(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		Message: "User created successfully",
		UserID:  userID,
	})
}

// Me は認証済みユーザー自身の情報を返す。
// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	u, err := h.service.GetMe(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}
