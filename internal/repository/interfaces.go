// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/accountman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateIfAbsent はユーザーが存在しない場合のみ作成する。
	// 主キー競合時は何もせずcreated=falseを返す（同時作成の敗者は勝者の行を読み直す）。
	// 別ユーザーとのメールアドレス重複はErrEmailTakenを返す。
	CreateIfAbsent(ctx context.Context, user *model.User) (created bool, err error)

	// UpdateDisplayName はusernameを写した非正規化フィールドを更新する。
	// ベストエフォートのミラーであり、プロフィールの真実のソースではない。
	UpdateDisplayName(ctx context.Context, id, displayName string) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するprofiles、sessionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// FindByUsername は指定ユーザー名のプロフィールを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Profile, error)

	// Upsert はuser_idをキーにプロフィールを1文でINSERTまたはUPDATEする。
	// 存在チェックと書き込みを分離しないことで、同一ユーザーの同時リクエストが
	// 両方INSERTを選んで主キー競合する窓を潰す。
	// username列のUNIQUE制約違反はErrUsernameTakenとして返す。
	Upsert(ctx context.Context, profile *model.Profile) (*model.Profile, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
