// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, profile, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingCode     = "MISSING_CODE"
	ErrCodeExchangeFailed  = "EXCHANGE_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeInvalidUsername = "INVALID_USERNAME"
	ErrCodeMissingField    = "MISSING_FIELD"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeUsernameTaken   = "USERNAME_TAKEN"
	ErrCodeEmailTaken      = "EMAIL_TAKEN"
	ErrCodeProfileNotFound = "PROFILE_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeDatastoreError  = "DATASTORE_ERROR"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は他人のプロフィールを編集しようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "自分のプロフィールのみ編集できます。",
		Category: "auth",
		Action:   "対象のアカウントでログインし直してください。",
	}
}

// NewInvalidUsernameError はユーザー名の形式違反エラーを生成する。
func NewInvalidUsernameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUsername,
		Message:  fmt.Sprintf("無効なユーザー名です: %s", reason),
		Category: "validation",
		Action:   "ユーザー名は英数字とアンダースコアのみで、空白を含まず入力してください。",
	}
}

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Category: "validation",
		Action:   "リクエストボディを確認してください。",
	}
}

// NewInvalidURLError はプロフィールURLフィールドの検証失敗エラーを生成する。
func NewInvalidURLError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです（%s）: %s", field, reason),
		Category: "validation",
		Action:   "公開されているWebサイトのURL（http:// または https://）を入力してください。",
	}
}

// NewUsernameTakenError はユーザー名の重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("このユーザー名は既に使用されています: %s", username),
		Category: "profile",
		Action:   "別のユーザー名を入力してください。",
	}
}

// NewEmailTakenError はメールアドレスの重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に別のアカウントで使用されています。",
		Category: "profile",
		Action:   "登録済みのアカウントでログインしてください。",
	}
}

// NewProfileNotFoundError はプロフィール未作成エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールがまだ作成されていません。",
		Category: "profile",
		Action:   "ユーザー名を設定してプロフィールを作成してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewDatastoreError はデータストア障害エラーを生成する。
// detailは開発モードでのみレスポンスに含め、本番では空文字列を渡すこと。
func NewDatastoreError(detail string) *APIError {
	msg := "データストアへのアクセスに失敗しました。"
	if detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, detail)
	}
	return &APIError{
		Code:     ErrCodeDatastoreError,
		Message:  msg,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
