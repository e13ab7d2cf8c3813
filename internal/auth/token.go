package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークン検証の失敗を表す。
// 署名不正・期限切れ・形式不正を呼び出し側に区別させない。
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	Secret   []byte
	Lifetime time.Duration
	// Now は現在時刻を返す。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// TokenService はHS256で署名したベアラートークンの発行と検証を行う。
// 状態を持たないため失効はできず、トークンは埋め込まれた有効期限まで有効。
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("token lifetime must be positive, got %s", cfg.Lifetime)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		secret:   cfg.Secret,
		lifetime: cfg.Lifetime,
		now:      now,
	}, nil
}

// Issue はuserIDをsubjectとするトークンを発行し、有効期限とともに返す。
func (s *TokenService) Issue(userID int64) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.lifetime)

	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Validate はトークンを検証し、subjectのユーザーIDを返す。
// 失敗理由はdebugログにのみ残し、戻り値は常にErrInvalidTokenとする。
func (s *TokenService) Validate(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		slog.Debug("token rejected", slog.String("reason", err.Error()))
		return 0, ErrInvalidToken
	}

	// "+5"や"007"のような表記は正規の10進表現と一致しないため拒否する
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || strconv.FormatInt(userID, 10) != claims.Subject {
		slog.Debug("token rejected", slog.String("reason", "invalid subject"))
		return 0, ErrInvalidToken
	}

	return userID, nil
}
