// Package model はドメインモデルを定義する。
package model

import "time"

// Identity はOAuthプロバイダーが認証した主体を表す。
// ローカルのレコードではなく、セッションに埋め込まれて到着する。
type Identity struct {
	SubjectID string // プロバイダー発行のsub（usersテーブルの主キーになる）
	Email     string
	Name      string
	AvatarURL string
	Provider  string // "google" 等
}

// User はローカルのアカウントレコードを表す。
// 主キーはIdentityのsubject ID。1 Identityにつき最大1行。
type User struct {
	ID          string
	Email       string
	Name        string
	DisplayName string // profilesのusernameを写した非正規化フィールド（ベストエフォート）
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile はユーザーの公開プロフィールを表す。
// user_idでUserと1対1。usernameはグローバルに一意。
type Profile struct {
	UserID    string
	Username  string
	Bio       string
	Location  string
	Website   string
	AvatarURL string
	JoinedAt  time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// 発行時のIdentityスナップショットを保持し、常にちょうど1つのIdentityに紐づく。
type Session struct {
	ID        string
	Identity  Identity
	ExpiresAt time.Time
	CreatedAt time.Time
}
