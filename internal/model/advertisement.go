package model

import "time"

// Category は広告のカテゴリ。
type Category string

const (
	CategorySell    Category = "Sell"
	CategoryBuy     Category = "Buy"
	CategoryService Category = "Service"
)

// Valid はカテゴリが定義済みの値かどうかを返す。
func (c Category) Valid() bool {
	switch c {
	case CategorySell, CategoryBuy, CategoryService:
		return true
	default:
		return false
	}
}

// Advertisement は掲載された広告を表す。
// OwnerUsernameは一覧・詳細取得時にusersテーブルとのJOINで埋められる。
type Advertisement struct {
	ID            int64
	Category      Category
	OwnerID       int64
	OwnerUsername string
	Title         string
	Price         int64
	Description   string
	CreatedAt     time.Time
}
