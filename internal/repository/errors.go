package repository

import (
	"errors"

	"github.com/lib/pq"
)

// UNIQUE制約違反をドメインの競合として扱うためのセンチネルエラー。
// サービス層はこれらをAPIErrorのConflictに変換し、生の制約違反テキストを漏らさない。
var (
	// ErrUsernameTaken はprofiles.usernameのUNIQUE制約違反を表す。
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken はusers.emailのUNIQUE制約違反を表す。
	ErrEmailTaken = errors.New("email already taken")
)

// PostgreSQLのUNIQUE制約違反エラーコード。
const uniqueViolationCode = pq.ErrorCode("23505")

// マイグレーションで定義した制約名。
const (
	constraintProfilesUsername = "profiles_username_key"
	constraintUsersEmail       = "users_email_key"
)

// isUniqueViolation はエラーが指定した制約のUNIQUE違反かどうかを判定する。
// constraintが空の場合は制約名を問わず判定する。
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolationCode {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
