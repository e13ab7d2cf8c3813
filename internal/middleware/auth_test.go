package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/adboard/internal/model"
)

// --- モック定義 ---

type mockUserResolver struct {
	resolveFn func(ctx context.Context, token string) (*model.User, error)
}

func (m *mockUserResolver) Resolve(ctx context.Context, token string) (*model.User, error) {
	return m.resolveFn(ctx, token)
}

func newAuthTestHandler(resolver UserResolver, captured **model.User) http.Handler {
	return NewAuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		*captured = u
		w.WriteHeader(http.StatusOK)
	}))
}

// 有効なトークンでユーザーがコンテキストに注入されることを検証
func TestAuthMiddleware_ValidToken(t *testing.T) {
	var gotToken string
	resolver := &mockUserResolver{
		resolveFn: func(_ context.Context, token string) (*model.User, error) {
			gotToken = token
			return &model.User{ID: 1, Username: "alice"}, nil
		},
	}
	var captured *model.User
	handler := newAuthTestHandler(resolver, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotToken != "abc.def.ghi" {
		t.Errorf("token = %q, want abc.def.ghi", gotToken)
	}
	if captured == nil || captured.Username != "alice" {
		t.Errorf("captured user = %+v", captured)
	}
}

// ヘッダー欠落・形式不正では401とWWW-Authenticateを返し、Resolveを呼ばないことを検証
func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"ヘッダーなし", ""},
		{"スキームのみ", "Bearer"},
		{"空トークン", "Bearer   "},
		{"Basic認証", "Basic YWxpY2U6c2VjcmV0"},
		{"スキームなし", "abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			resolver := &mockUserResolver{
				resolveFn: func(context.Context, string) (*model.User, error) {
					called = true
					return nil, nil
				},
			}
			var captured *model.User
			handler := newAuthTestHandler(resolver, &captured)

			req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
			}
			if resp.Header.Get("WWW-Authenticate") != "Bearer" {
				t.Errorf("WWW-Authenticate = %q", resp.Header.Get("WWW-Authenticate"))
			}
			if called {
				t.Error("Resolve should not be called")
			}
		})
	}
}

// スキーム名は大文字小文字を区別しないことを検証
func TestBearerToken_CaseInsensitiveScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer tok")

	token, ok := BearerToken(req)
	if !ok || token != "tok" {
		t.Errorf("BearerToken = %q, %v", token, ok)
	}
}

// 不正なトークンは統一エラーフォーマットの401になることを検証
func TestAuthMiddleware_InvalidToken(t *testing.T) {
	resolver := &mockUserResolver{
		resolveFn: func(context.Context, string) (*model.User, error) {
			return nil, model.NewUnauthorizedError()
		},
	}
	var captured *model.User
	handler := newAuthTestHandler(resolver, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer tampered")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
	}
	if captured != nil {
		t.Error("next handler should not be called")
	}
}

// ストレージ障害は401ではなく500になることを検証
func TestAuthMiddleware_ResolverFailure(t *testing.T) {
	resolver := &mockUserResolver{
		resolveFn: func(context.Context, string) (*model.User, error) {
			return nil, errors.New("db down")
		},
	}
	var captured *model.User
	handler := newAuthTestHandler(resolver, &captured)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("expected no user in empty context")
	}
	ctx := ContextWithUser(context.Background(), &model.User{ID: 5})
	if u, ok := UserFromContext(ctx); !ok || u.ID != 5 {
		t.Errorf("UserFromContext = %+v, %v", u, ok)
	}
}
