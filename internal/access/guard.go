// Package access はベアラートークンからのユーザー解決と、操作ごとの権限判定を提供する。
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adboard/internal/metrics"
	"github.com/hitoshi/adboard/internal/model"
)

// 認可拒否メトリクスのactionラベル
const (
	ActionDeleteAdvertisement = "delete_advertisement"
	ActionPromoteUser         = "promote_user"
)

// TokenValidator はトークンを検証してユーザーIDを返す。
type TokenValidator interface {
	Validate(token string) (int64, error)
}

// UserFinder はIDでユーザーを検索する。
// ユーザーが存在しない場合は(nil, nil)を返す。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Guard は認証済みユーザーの解決と、削除・昇格の権限判定を行う。
// 状態を持たないため複数goroutineから安全に利用できる。
type Guard struct {
	tokens  TokenValidator
	users   UserFinder
	metrics metrics.MetricsCollector
}

// NewGuard はGuardを生成する。
func NewGuard(tokens TokenValidator, users UserFinder, collector metrics.MetricsCollector) *Guard {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Guard{tokens: tokens, users: users, metrics: collector}
}

// Resolve はトークンの持ち主を返す。
// トークン不正と、subjectのユーザーが存在しない場合は同じUnauthorizedになる。
func (g *Guard) Resolve(ctx context.Context, token string) (*model.User, error) {
	userID, err := g.tokens.Validate(token)
	if err != nil {
		g.metrics.RecordTokenRejected()
		return nil, model.NewUnauthorizedError()
	}

	user, err := g.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		g.metrics.RecordTokenRejected()
		slog.Debug("token subject not found", slog.Int64("user_id", userID))
		return nil, model.NewUnauthorizedError()
	}

	return user, nil
}

// CanDelete は広告の所有者または管理者であればtrueを返す。
func CanDelete(user *model.User, ownerID int64) bool {
	if user == nil {
		return false
	}
	return user.ID == ownerID || user.IsAdmin
}

// CanPromote は管理者であればtrueを返す。
func CanPromote(user *model.User) bool {
	return user != nil && user.IsAdmin
}

// AuthorizeDelete はCanDeleteが偽の場合にForbiddenを返す。
func (g *Guard) AuthorizeDelete(user *model.User, ownerID int64) error {
	if CanDelete(user, ownerID) {
		return nil
	}
	g.deny(ActionDeleteAdvertisement, user)
	return model.NewForbiddenError()
}

// AuthorizePromote はCanPromoteが偽の場合にForbiddenを返す。
func (g *Guard) AuthorizePromote(user *model.User) error {
	if CanPromote(user) {
		return nil
	}
	g.deny(ActionPromoteUser, user)
	return model.NewForbiddenError()
}

func (g *Guard) deny(action string, user *model.User) {
	g.metrics.RecordAuthorizationDenied(action)
	var userID int64
	if user != nil {
		userID = user.ID
	}
	slog.Info("authorization denied",
		slog.String("action", action),
		slog.Int64("user_id", userID),
	)
}
