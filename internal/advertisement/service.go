// Package advertisement は広告の投稿・閲覧・削除のビジネスロジックを提供する。
package advertisement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/adboard/internal/model"
	"github.com/hitoshi/adboard/internal/repository"
	"github.com/hitoshi/adboard/internal/security"
)

const (
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 200
	// MaxDescriptionLength は説明文の最大文字数。
	MaxDescriptionLength = 1000
	// DefaultListLimit は一覧取得件数の既定値。
	DefaultListLimit = 50
	// MaxListLimit は一覧取得件数の上限。
	MaxListLimit = 100
)

// DeleteAuthorizer は広告削除の権限を判定する。
type DeleteAuthorizer interface {
	AuthorizeDelete(user *model.User, ownerID int64) error
}

// CreateInput は広告投稿の入力。
type CreateInput struct {
	Category    model.Category
	Title       string
	Price       int64
	Description string
}

// ListFilter は一覧取得の条件。Limitが0以下の場合は既定値を使う。
type ListFilter struct {
	Category model.Category
	Limit    int
	Offset   int
}

// Service は広告のビジネスロジックを提供する。
type Service struct {
	repo      repository.AdvertisementRepository
	guard     DeleteAuthorizer
	sanitizer security.TextSanitizer
}

// NewService はServiceを生成する。
func NewService(repo repository.AdvertisementRepository, guard DeleteAuthorizer, sanitizer security.TextSanitizer) *Service {
	return &Service{repo: repo, guard: guard, sanitizer: sanitizer}
}

// Create は認証済みユーザーを所有者として広告を登録する。
// 長さは入力そのもので検証し、保存する前にマークアップを除去する。
func (s *Service) Create(ctx context.Context, actor *model.User, in CreateInput) (*model.Advertisement, error) {
	if actor == nil {
		return nil, model.NewUnauthorizedError()
	}
	if err := validate(in); err != nil {
		return nil, err
	}

	ad := &model.Advertisement{
		Category:    in.Category,
		OwnerID:     actor.ID,
		Title:       s.sanitizer.Sanitize(in.Title),
		Price:       in.Price,
		Description: s.sanitizer.Sanitize(in.Description),
	}

	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("failed to create advertisement: %w", err)
	}
	ad.OwnerUsername = actor.Username

	slog.Info("advertisement created",
		slog.Int64("advertisement_id", ad.ID),
		slog.Int64("owner_id", ad.OwnerID),
		slog.String("category", string(ad.Category)),
	)

	return ad, nil
}

func validate(in CreateInput) error {
	if !in.Category.Valid() {
		return model.NewValidationError("category", "Sell, Buy, Service のいずれかを指定してください")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return model.NewValidationError("title", fmt.Sprintf("%d文字以内で指定してください", MaxTitleLength))
	}
	if in.Price < 0 {
		return model.NewValidationError("price", "0以上を指定してください")
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return model.NewValidationError("description", fmt.Sprintf("%d文字以内で指定してください", MaxDescriptionLength))
	}
	return nil
}

// List は条件に一致する広告をID昇順で返す。
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*model.Advertisement, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, model.NewValidationError("category", "Sell, Buy, Service のいずれかを指定してください")
	}
	if filter.Offset < 0 {
		return nil, model.NewValidationError("offset", "0以上を指定してください")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	ads, err := s.repo.List(ctx, repository.AdvertisementFilter{
		Category: filter.Category,
		Limit:    limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}
	return ads, nil
}

// Get は広告を1件返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.Advertisement, error) {
	ad, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find advertisement: %w", err)
	}
	if ad == nil {
		return nil, model.NewAdvertisementNotFoundError(id)
	}
	return ad, nil
}

// Delete は所有者または管理者による広告の削除を行う。
// 権限判定は削除より前に行い、拒否された場合は何も変更しない。
func (s *Service) Delete(ctx context.Context, actor *model.User, id int64) error {
	ad, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.guard.AuthorizeDelete(actor, ad.OwnerID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		// 判定後に別リクエストが削除した場合
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAdvertisementNotFoundError(id)
		}
		return fmt.Errorf("failed to delete advertisement: %w", err)
	}

	slog.Info("advertisement deleted",
		slog.Int64("advertisement_id", id),
		slog.Int64("deleted_by", actor.ID),
		slog.Bool("by_admin", actor.ID != ad.OwnerID),
	)

	return nil
}
