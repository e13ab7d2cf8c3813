package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/adboard/internal/middleware"
	"github.com/hitoshi/adboard/internal/model"
)

// AuthServiceInterface はユーザー登録とログインのサービスインターフェース。
type AuthServiceInterface interface {
	// Register はユーザーを登録する。ユーザー名が使用済みの場合はDuplicateUsernameを返す。
	Register(ctx context.Context, username, password string) (*model.User, error)
	// Login は認証に成功したユーザーにアクセストークンを発行する。
	Login(ctx context.Context, username, password string) (*model.AccessToken, error)
}

// UserServiceInterface はユーザー管理のサービスインターフェース。
type UserServiceInterface interface {
	PromoteToAdmin(ctx context.Context, actor *model.User, username string) (*model.User, error)
	ChangePassword(ctx context.Context, actor *model.User, currentPassword, newPassword string) error
}

// UserHandler はユーザー登録・認証・管理のHTTPハンドラー。
type UserHandler struct {
	auth  AuthServiceInterface
	users UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(auth AuthServiceInterface, users UserServiceInterface) *UserHandler {
	return &UserHandler{auth: auth, users: users}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

// Register はユーザー登録を処理する。
// POST /api/users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はユーザー名とパスワードを検証してアクセストークンを返す。
// フォーム（application/x-www-form-urlencoded）とJSONの両方を受け付ける。
// POST /api/users/auth
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if isJSONRequest(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err)
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		if err := r.ParseForm(); err != nil {
			handleServiceError(w, model.NewInvalidRequestError())
			return
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token.Token,
		TokenType:   token.TokenType,
		ExpiresAt:   token.ExpiresAt,
	})
}

// Me は認証済みユーザーの情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ChangePassword は認証済みユーザーのパスワードを変更する。
// POST /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PromoteToAdmin はクエリパラメータusernameのユーザーを管理者に昇格する。
// POST /api/users/promote-to-admin?username=
func (h *UserHandler) PromoteToAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w)
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		handleServiceError(w, model.NewValidationError("username", "空です"))
		return
	}

	promoted, err := h.users.PromoteToAdmin(r.Context(), actor, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(promoted))
}
