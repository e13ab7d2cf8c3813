// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/adboard/internal/model"
)

var (
	// ErrDuplicateUsername はusers.usernameのUNIQUE制約違反を表す。
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザー名の一意性はストレージ側の制約で保証する。
type UserRepository interface {
	// Create はユーザーを作成し、採番されたIDを含むユーザーを返す。
	// ユーザー名が既に存在する場合はErrDuplicateUsernameを返す。
	Create(ctx context.Context, username, passwordHash string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを取得する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Update はusernameKeyで特定したユーザーのusername、password_hash、is_adminを
	// 単一トランザクションで置き換える。
	// 対象が存在しない場合はErrNotFound、変更後のユーザー名が重複する場合はErrDuplicateUsernameを返す。
	Update(ctx context.Context, usernameKey string, user *model.User) error
}

// AdvertisementFilter は広告一覧の絞り込み条件。
type AdvertisementFilter struct {
	Category model.Category // 空の場合は全カテゴリ
	Limit    int
	Offset   int
}

// AdvertisementRepository は広告データの永続化インターフェース。
type AdvertisementRepository interface {
	// Create は広告を作成し、採番されたIDと作成日時をadに設定する。
	Create(ctx context.Context, ad *model.Advertisement) error

	// FindByID は指定IDの広告を所有者名付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Advertisement, error)

	// List は条件に合う広告をID昇順で返す。
	List(ctx context.Context, filter AdvertisementFilter) ([]*model.Advertisement, error)

	// Delete は指定IDの広告を削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id int64) error
}
