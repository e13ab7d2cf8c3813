package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes はbcryptが扱える入力長の上限。
const MaxPasswordBytes = 72

// ErrPasswordTooLong はbcryptの入力長上限を超えたパスワードを表す。
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Hasher はパスワードの一方向ハッシュ化と照合のインターフェース。
// 実装は複数goroutineから同時に呼ばれても安全でなければならない。
type Hasher interface {
	// Hash はソルトとコストを埋め込んだハッシュ文字列を返す。
	// 同じ平文でも呼び出しごとに異なる文字列になる。
	Hash(plaintext string) (string, error)
	// Verify は平文がハッシュと一致するかを定数時間で照合する。
	// 不一致や不正な形式のハッシュではfalseを返す。
	Verify(plaintext, hash string) bool
}

// BcryptHasher はbcryptによるHasher実装。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。
// costが範囲外の場合はbcrypt.DefaultCostを使用する。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はパスワードをbcryptでハッシュ化する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify はパスワードとハッシュを照合する。
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

var _ Hasher = (*BcryptHasher)(nil)
