package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/lifemanager/internal/middleware"
	"github.com/hitoshi/lifemanager/internal/model"
	"github.com/hitoshi/lifemanager/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getProfileFn     func(ctx context.Context, userID int64) (*user.Profile, error)
	updateNameFn     func(ctx context.Context, userID int64, name string) (*user.Profile, error)
	changePasswordFn func(ctx context.Context, userID int64, currentPassword, newPassword string) error
}

func (m *mockUserService) GetProfile(ctx context.Context, userID int64) (*user.Profile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return nil, model.NewNotFoundError("ユーザー")
}

func (m *mockUserService) UpdateName(ctx context.Context, userID int64, name string) (*user.Profile, error) {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, userID, name)
	}
	return nil, model.NewNotFoundError("ユーザー")
}

func (m *mockUserService) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

// withPrincipal はPrincipalをコンテキストに設定したリクエストを返す。
func withPrincipal(r *http.Request, userID int64) *http.Request {
	p := &model.Principal{UserID: userID, Email: "x@y.com", Source: model.PrincipalSourceToken}
	return r.WithContext(middleware.ContextWithPrincipal(r.Context(), p))
}

// --- テスト ---

func TestUserHandler_GetMe_ReturnsProfile(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID int64) (*user.Profile, error) {
			if userID != 42 {
				t.Errorf("userID = %d, want 42", userID)
			}
			return &user.Profile{ID: 42, Email: "a@b.com", Name: "ムーミン", AuthProvider: "kakao"}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), 42)
	w := httptest.NewRecorder()
	h.GetMe(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["id"] != float64(42) || body["email"] != "a@b.com" || body["name"] != "ムーミン" {
		t.Errorf("body = %v", body)
	}
	if len(body) != 3 {
		t.Errorf("body should have exactly id, email, name: %v", body)
	}
}

func TestUserHandler_GetMe_NoPrincipal_Returns401(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.GetMe(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Status != http.StatusUnauthorized || body.Error != "Unauthorized" {
		t.Errorf("body = %+v", body)
	}
}

func TestUserHandler_GetMe_UnknownAccount_Returns400(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), 999)
	w := httptest.NewRecorder()
	h.GetMe(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUserHandler_UpdateMe_PassesName(t *testing.T) {
	var gotName string
	svc := &mockUserService{
		updateNameFn: func(ctx context.Context, userID int64, name string) (*user.Profile, error) {
			gotName = name
			return &user.Profile{ID: userID, Email: "x@y.com", Name: name}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withPrincipal(httptest.NewRequest(http.MethodPut, "/api/users/me", strings.NewReader(`{"name":"新しい名前"}`)), 5)
	w := httptest.NewRecorder()
	h.UpdateMe(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if gotName != "新しい名前" {
		t.Errorf("name = %q", gotName)
	}
}

func TestUserHandler_ChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"success", nil, http.StatusOK},
		{"bad current password", model.ErrBadCurrentPassword, http.StatusBadRequest},
		{"weak password", model.ErrWeakPassword, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				changePasswordFn: func(ctx context.Context, userID int64, currentPassword, newPassword string) error {
					if currentPassword != "old-password" || newPassword != "new-password" {
						t.Errorf("ChangePassword(%q, %q)", currentPassword, newPassword)
					}
					return tt.err
				},
			}
			h := NewUserHandler(svc)

			body := `{"currentPassword":"old-password","newPassword":"new-password"}`
			req := withPrincipal(httptest.NewRequest(http.MethodPut, "/api/users/me/password", strings.NewReader(body)), 5)
			w := httptest.NewRecorder()
			h.ChangePassword(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
