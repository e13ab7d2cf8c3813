// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, advertisement, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.ErrForbidden) のようにコード単位で比較できる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeDuplicateUsername     = "DUPLICATE_USERNAME"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeUnknownUsername       = "UNKNOWN_USERNAME"
	ErrCodeAdvertisementNotFound = "ADVERTISEMENT_NOT_FOUND"
	ErrCodeValidation            = "VALIDATION_FAILED"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeTooManyAttempts       = "TOO_MANY_ATTEMPTS"
	ErrCodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// errors.Isの比較対象として使う代表値。
var (
	ErrDuplicateUsername     = NewDuplicateUsernameError()
	ErrInvalidCredentials    = NewInvalidCredentialsError()
	ErrUnauthorized          = NewUnauthorizedError()
	ErrForbidden             = NewForbiddenError()
	ErrUnknownUsername       = &APIError{Code: ErrCodeUnknownUsername}
	ErrAdvertisementNotFound = &APIError{Code: ErrCodeAdvertisementNotFound}
	ErrValidation            = &APIError{Code: ErrCodeValidation}
	ErrTooManyAttempts       = NewTooManyAttemptsError()
)

// NewDuplicateUsernameError はユーザー名重複エラーを生成する。
func NewDuplicateUsernameError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateUsername,
		Message:  "このユーザー名は既に使用されています。",
		Category: "auth",
		Action:   "別のユーザー名を指定してください。",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー未登録とパスワード誤りを区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
// トークン不正・期限切れ・ユーザー不在のいずれも同じエラーになる。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "広告の所有者または管理者のみ実行できます。",
	}
}

// NewUnknownUsernameError は指定ユーザー名が存在しない場合のエラーを生成する。
func NewUnknownUsernameError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownUsername,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", username),
		Category: "validation",
		Action:   "ユーザー名を確認してください。",
	}
}

// NewAdvertisementNotFoundError は広告未検出エラーを生成する。
func NewAdvertisementNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeAdvertisementNotFound,
		Message:  fmt.Sprintf("指定された広告が見つかりません: %d", id),
		Category: "advertisement",
		Action:   "広告IDを確認してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しい形式でリクエストしてください。",
	}
}

// NewTooManyAttemptsError はログイン試行回数超過エラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "ログイン試行回数が上限に達しました。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はリクエスト頻度超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
