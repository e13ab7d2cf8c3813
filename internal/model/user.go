// Package model はドメインモデルを定義する。
package model

import "time"

// User は広告掲載サービスの利用ユーザーを表す。
// PasswordHashは平文パスワードを保持しない。
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsAdmin      bool
	CreatedAt    time.Time
}

// AccessToken はログイン成功時に発行されるベアラートークン。
type AccessToken struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
}
