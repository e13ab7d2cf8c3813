// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/adboard/internal/model"
	"github.com/hitoshi/adboard/internal/repository"
)

// PromoteAuthorizer は管理者昇格の権限を判定する。
type PromoteAuthorizer interface {
	AuthorizePromote(user *model.User) error
}

// Credentials は登録・パスワード照合・ハッシュ化を行う。auth.Serviceが満たす。
// VerifyPasswordはログインと同じ失敗回数の制限を適用する。
type Credentials interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	VerifyPassword(ctx context.Context, username, password string) (*model.User, error)
	HashPassword(password string) (string, error)
}

// Service はユーザー管理のサービス層。
// 管理者昇格とパスワード変更のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	guard       PromoteAuthorizer
	credentials Credentials
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, guard PromoteAuthorizer, credentials Credentials) *Service {
	return &Service{
		userRepo:    userRepo,
		guard:       guard,
		credentials: credentials,
	}
}

// PromoteToAdmin は管理者が指定ユーザーを管理者に昇格する。
// 権限判定は対象ユーザーの検索より前に行う。
func (s *Service) PromoteToAdmin(ctx context.Context, actor *model.User, username string) (*model.User, error) {
	if err := s.guard.AuthorizePromote(actor); err != nil {
		return nil, err
	}

	target, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if target == nil {
		return nil, model.NewUnknownUsernameError(username)
	}

	if target.IsAdmin {
		return target, nil
	}

	target.IsAdmin = true
	if err := s.update(ctx, username, target); err != nil {
		return nil, err
	}

	slog.Info("user promoted to admin",
		slog.Int64("user_id", target.ID),
		slog.Int64("promoted_by", actor.ID),
	)

	return target, nil
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
// 発行済みのトークンは有効期限まで有効なまま残る。
func (s *Service) ChangePassword(ctx context.Context, actor *model.User, currentPassword, newPassword string) error {
	if actor == nil {
		return model.NewUnauthorizedError()
	}

	user, err := s.credentials.VerifyPassword(ctx, actor.Username, currentPassword)
	if err != nil {
		return err
	}

	hash, err := s.credentials.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	if err := s.update(ctx, user.Username, user); err != nil {
		return err
	}

	slog.Info("password changed", slog.Int64("user_id", user.ID))
	return nil
}

// EnsureAdmin は指定ユーザーを管理者として用意する。
// 未登録なら登録してから昇格し、登録済みなら昇格のみ行う（パスワードは変更しない）。
// 初期管理者の作成にのみ使い、権限判定を行わない。
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (*model.User, bool, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find user: %w", err)
	}

	created := false
	if user == nil {
		user, err = s.credentials.Register(ctx, username, password)
		if err != nil {
			return nil, false, err
		}
		created = true
	}

	if !user.IsAdmin {
		user.IsAdmin = true
		if err := s.update(ctx, user.Username, user); err != nil {
			return nil, false, err
		}
	}

	slog.Info("admin user ensured",
		slog.Int64("user_id", user.ID),
		slog.Bool("created", created),
	)

	return user, created, nil
}

func (s *Service) update(ctx context.Context, usernameKey string, user *model.User) error {
	if err := s.userRepo.Update(ctx, usernameKey, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUnknownUsernameError(usernameKey)
		}
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return model.NewDuplicateUsernameError()
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}
