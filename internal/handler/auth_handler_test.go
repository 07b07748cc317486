package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

func TestAuthHandler_Login_Success(t *testing.T) {
	var gotEmail, gotPassword string
	svc := &mockAuthService{
		loginFn: func(_ context.Context, email, password string) (string, error) {
			gotEmail, gotPassword = email, password
			return "signed-token", nil
		},
	}
	h := NewAuthHandler(svc)

	req := jsonRequest(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret1"}`)
	w := httptest.NewRecorder()
	h.Login(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, http.StatusOK, w.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["access_token"] != "signed-token" {
		t.Errorf("access_token = %q, want %q", body["access_token"], "signed-token")
	}
	if gotEmail != "alice@example.com" || gotPassword != "secret1" {
		t.Errorf("service called with (%q, %q)", gotEmail, gotPassword)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	req := jsonRequest(http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong"}`)
	w := httptest.NewRecorder()
	h.Login(w, req)

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeInvalidCredentials)
}

func TestAuthHandler_Login_UnknownField(t *testing.T) {
	called := false
	h := NewAuthHandler(&mockAuthService{
		loginFn: func(context.Context, string, string) (string, error) {
			called = true
			return "", nil
		},
	})

	req := jsonRequest(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"x","admin":true}`)
	w := httptest.NewRecorder()
	h.Login(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, model.ErrCodeUnknownField)
	if called {
		t.Error("service should not be called for a rejected body")
	}
}

func TestAuthHandler_Refresh(t *testing.T) {
	identity := model.Identity{UserID: "user-1", Email: "a@example.com", TokenID: "jti-1", ExpiresAt: time.Now().Add(time.Hour)}
	var got model.Identity
	h := NewAuthHandler(&mockAuthService{
		refreshFn: func(_ context.Context, id model.Identity) (string, error) {
			got = id
			return "new-token", nil
		},
	})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/auth/refresh", nil), identity)
	w := httptest.NewRecorder()
	h.Refresh(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.UserID != "user-1" || got.TokenID != "jti-1" {
		t.Errorf("identity passed to service = %+v", got)
	}
}

func TestAuthHandler_Refresh_NoIdentity(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{})

	w := httptest.NewRecorder()
	h.Refresh(w, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))

	assertErrorResponse(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
}

func TestAuthHandler_Logout(t *testing.T) {
	var revoked string
	h := NewAuthHandler(&mockAuthService{
		logoutFn: func(_ context.Context, id model.Identity) error {
			revoked = id.TokenID
			return nil
		},
	})

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/auth/logout", nil), model.Identity{UserID: "user-1", TokenID: "jti-9"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
	if revoked != "jti-9" {
		t.Errorf("revoked token = %q, want %q", revoked, "jti-9")
	}
}
