// Package auth はパスワード認証、トークン発行、ユーザー登録を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/adboard/internal/metrics"
	"github.com/hitoshi/adboard/internal/model"
	"github.com/hitoshi/adboard/internal/repository"
)

// MaxUsernameLength はユーザー名の最大文字数。
const MaxUsernameLength = 100

// LoginAttemptCounter はユーザー名ごとのパスワード照合回数を保持するストア。
// 照合成功時に消去されるため、残っている回数は失敗回数に等しい。
type LoginAttemptCounter interface {
	// Hit は試行を1回記録し、加算後のウィンドウ内の回数を返す。
	// 同一キーへの並行呼び出しはそれぞれ異なる値を受け取る。
	Hit(ctx context.Context, key string) (int, error)
	// Reset は回数を消去する。
	Reset(ctx context.Context, key string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenType        string // レスポンスのtoken_type
	MaxLoginFailures int    // 0以下でロックアウト無効
}

// Service は登録・ログインのビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	hasher    Hasher
	tokens    *TokenService
	attempts  LoginAttemptCounter
	metrics   metrics.MetricsCollector
	config    ServiceConfig
	dummyHash string
}

// NewService はServiceを生成する。
// attemptsがnilの場合はログイン失敗回数による制限を行わない。
func NewService(
	userRepo repository.UserRepository,
	hasher Hasher,
	tokens *TokenService,
	attempts LoginAttemptCounter,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if config.TokenType == "" {
		config.TokenType = "bearer"
	}

	// 未登録ユーザーでも照合コストを揃えるためのダミーハッシュ
	dummyHash, err := hasher.Hash("adboard-dummy-password")
	if err != nil {
		slog.Warn("failed to prepare dummy hash", slog.String("error", err.Error()))
	}

	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		tokens:    tokens,
		attempts:  attempts,
		metrics:   collector,
		config:    config,
		dummyHash: dummyHash,
	}
}

// Register はユーザーを登録する。
// ユーザー名の重複はストレージのUNIQUE制約で判定する。
func (s *Service) Register(ctx context.Context, username, password string) (*model.User, error) {
	if err := ValidateUsername(username); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeInvalid)
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		s.metrics.RecordRegistration(metrics.OutcomeInvalid)
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, username, hash)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			s.metrics.RecordRegistration(metrics.OutcomeDuplicate)
			return nil, model.NewDuplicateUsernameError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordRegistration(metrics.OutcomeSuccess)
	slog.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("username", user.Username),
	)

	return user, nil
}

// Authenticate はユーザー名とパスワードを照合し、認証済みユーザーを返す。
// ユーザー未登録とパスワード誤りはどちらも同じInvalidCredentialsエラーになる。
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		s.hasher.Verify(password, s.dummyHash)
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// Login は認証に成功したユーザーにアクセストークンを発行する。
// 失敗回数が上限に達したユーザー名はウィンドウが明けるまでTooManyAttemptsとなる。
func (s *Service) Login(ctx context.Context, username, password string) (*model.AccessToken, error) {
	user, err := s.VerifyPassword(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrTooManyAttempts):
			s.metrics.RecordLogin(metrics.OutcomeThrottled)
		case errors.Is(err, model.ErrInvalidCredentials):
			s.metrics.RecordLogin(metrics.OutcomeFailure)
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.RecordLogin(metrics.OutcomeSuccess)
	slog.Info("user logged in", slog.Int64("user_id", user.ID))

	return &model.AccessToken{
		Token:     token,
		TokenType: s.config.TokenType,
		ExpiresAt: expiresAt,
	}, nil
}

// VerifyPassword はログイン失敗回数の制限を適用したうえでパスワードを照合する。
// ログインとパスワード変更は同じカウンタを共有する。
// 照合の前に試行を1回分確保するため、並行した試行でも上限を超えて照合しない。
func (s *Service) VerifyPassword(ctx context.Context, username, password string) (*model.User, error) {
	if !s.reserveAttempt(ctx, username) {
		slog.Warn("login locked out", slog.String("username", username))
		return nil, model.NewTooManyAttemptsError()
	}

	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	if s.lockoutEnabled() {
		if err := s.attempts.Reset(ctx, username); err != nil {
			slog.Warn("failed to reset login attempts", slog.String("error", err.Error()))
		}
	}
	return user, nil
}

// HashPassword はパスワードを検証してからハッシュ化する。
// パスワード変更など登録以外の経路で使う。
func (s *Service) HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) lockoutEnabled() bool {
	return s.attempts != nil && s.config.MaxLoginFailures > 0
}

// reserveAttempt は試行を1回記録し、上限以内ならtrueを返す。
// カウンタの更新に失敗した場合はログを残して試行を許可する。
func (s *Service) reserveAttempt(ctx context.Context, username string) bool {
	if !s.lockoutEnabled() {
		return true
	}
	n, err := s.attempts.Hit(ctx, username)
	if err != nil {
		slog.Warn("failed to record login attempt", slog.String("error", err.Error()))
		return true
	}
	return n <= s.config.MaxLoginFailures
}

// ValidateUsername はユーザー名が空でなく上限文字数以内であることを検証する。
func ValidateUsername(username string) error {
	if username == "" {
		return model.NewValidationError("username", "空です")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return model.NewValidationError("username", fmt.Sprintf("%d文字以内で指定してください", MaxUsernameLength))
	}
	return nil
}

// ValidatePassword はパスワードが空でなくbcryptの上限以内であることを検証する。
func ValidatePassword(password string) error {
	if password == "" {
		return model.NewValidationError("password", "空です")
	}
	if len(password) > MaxPasswordBytes {
		return model.NewValidationError("password", fmt.Sprintf("%dバイト以内で指定してください", MaxPasswordBytes))
	}
	return nil
}
