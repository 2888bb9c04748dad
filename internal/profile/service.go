// Package profile はユーザー/プロフィールのプロビジョニングと整合性維持を提供する。
//
// usersとprofilesの作成・更新パスの唯一の書き込み担当（writer-of-record）。
// 同一Identityの重複リクエストや、異なるIdentity同士の同名ユーザー名の奪い合いは、
// アプリケーション側のロックではなくデータストアのUNIQUE制約で決着させる。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/accountman/internal/metrics"
	"github.com/hitoshi/accountman/internal/model"
	"github.com/hitoshi/accountman/internal/repository"
	"github.com/hitoshi/accountman/internal/security"
)

// usernamePattern はユーザー名に許可される文字。英数字とアンダースコアのみ。
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// maxUsernameLength はユーザー名の最大長。
const maxUsernameLength = 32

// fallbackUserName はIdentityに表示名ヒントが無い場合の初期値。
const fallbackUserName = "New User"

// WarnDisplayNameNotSynced はミラー更新失敗時に呼び出し元へ返す警告メッセージ。
// プロフィール書き込み自体は成功しているため、エラーにはしない。
const WarnDisplayNameNotSynced = "display name was not synced to the user record"

// ProfileInput はSetUsernameの入力。
type ProfileInput struct {
	// TargetUserID は編集対象のユーザーID。空の場合は呼び出しIdentity自身を対象とする。
	// 呼び出しIdentityと異なる値を指定するとForbiddenになる。
	TargetUserID string
	Username     string
	Bio          string
	Location     string
	Website      string
	AvatarURL    string
}

// SessionRevoker は退会時に対象ユーザーの全セッションを失効させるインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はプロフィールのプロビジョニングに関するビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	profileRepo repository.ProfileRepository
	sessions    SessionRevoker
	urlGuard    security.URLGuardService
	sanitizer   security.TextSanitizerService
	collector   metrics.MetricsCollector
	development bool
}

// NewService はServiceを生成する。
// developmentが真のとき、データストア障害の詳細をエラーレスポンスに含める。
func NewService(
	userRepo repository.UserRepository,
	profileRepo repository.ProfileRepository,
	sessions SessionRevoker,
	urlGuard security.URLGuardService,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	development bool,
) *Service {
	return &Service{
		userRepo:    userRepo,
		profileRepo: profileRepo,
		sessions:    sessions,
		urlGuard:    urlGuard,
		sanitizer:   sanitizer,
		collector:   collector,
		development: development,
	}
}

// GetProfile は呼び出しIdentity自身のプロフィールを取得する。
// 未作成の場合はPROFILE_NOT_FOUNDを返す。
func (s *Service) GetProfile(ctx context.Context, identity model.Identity) (*model.Profile, error) {
	if identity.SubjectID == "" {
		return nil, model.NewUnauthorizedError()
	}

	profile, err := s.profileRepo.FindByUserID(ctx, identity.SubjectID)
	if err != nil {
		return nil, s.datastoreError("find profile", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError()
	}

	return profile, nil
}

// EnsureUser はIdentityに対応するユーザーレコードの存在を冪等に保証する。
// 同一Identityの同時呼び出しでは主キーのUNIQUE制約が最終的な勝敗を決める。
// 敗者は競合をエラーにせず、勝者の行を読み直して返す。
// 別Identityとのメールアドレス重複はEMAIL_TAKENとして返す。
func (s *Service) EnsureUser(ctx context.Context, identity model.Identity) (*model.User, bool, error) {
	if identity.SubjectID == "" {
		return nil, false, model.NewUnauthorizedError()
	}
	if identity.Email == "" {
		return nil, false, model.NewMissingFieldError("email")
	}

	// 事前重複チェック（助言的）。別のsubjectが同じメールアドレスを持っていれば
	// INSERTを試みる前に失敗させる。すり抜けた同時リクエストは
	// email列のUNIQUE制約違反（ErrEmailTaken）として現れる。
	existing, err := s.userRepo.FindByEmail(ctx, identity.Email)
	if err != nil {
		return nil, false, s.datastoreError("check email", err)
	}
	if existing != nil && existing.ID != identity.SubjectID {
		return nil, false, model.NewEmailTakenError()
	}

	name := identity.Name
	if name == "" {
		name = fallbackUserName
	}

	now := time.Now()
	newUser := &model.User{
		ID:        identity.SubjectID,
		Email:     identity.Email,
		Name:      name,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.userRepo.CreateIfAbsent(ctx, newUser)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, false, model.NewEmailTakenError()
		}
		return nil, false, s.datastoreError("create user", err)
	}

	// 作成の成否に関わらず読み直す。敗者はここで勝者の行を得る。
	user, err := s.userRepo.FindByID(ctx, identity.SubjectID)
	if err != nil {
		return nil, false, s.datastoreError("find user", err)
	}
	if user == nil {
		return nil, false, s.datastoreError("find user", fmt.Errorf("user disappeared after create: %s", identity.SubjectID))
	}

	if created {
		s.collector.RecordUserProvisioned()
		slog.Info("user provisioned",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
	}

	return user, created, nil
}

// SetUsername はユーザー名とプロフィールフィールドを設定・更新する。
// 処理順序:
//  1. ユーザー名の形式検証（検証失敗時は一切書き込まない）
//  2. 認可チェック（対象ユーザー = 呼び出しIdentity）
//  3. ユーザー名の事前重複チェック（早期のConflict返却のための助言的チェック）
//  4. ユーザーレコードの存在保証（Userの無いProfileを作らない）
//  5. user_idをキーにした1文のUPSERT
//
// 事前チェックをすり抜けた同時の奪い合いはUPSERT時のUNIQUE制約違反として現れ、
// 同じUSERNAME_TAKENに変換される。呼び出し元に生の制約違反テキストは返さない。
// 戻り値のwarningは、ミラーフィールド更新が失敗した場合の部分成功の通知。
func (s *Service) SetUsername(ctx context.Context, identity model.Identity, input ProfileInput) (*model.Profile, string, error) {
	if identity.SubjectID == "" {
		return nil, "", model.NewUnauthorizedError()
	}

	// 1. ユーザー名の形式検証
	username := strings.TrimSpace(input.Username)
	if err := validateUsername(username); err != nil {
		return nil, "", err
	}

	// 2. 認可チェック: 他人のプロフィールは編集できない
	if input.TargetUserID != "" && input.TargetUserID != identity.SubjectID {
		return nil, "", model.NewForbiddenError()
	}

	// 自由記述フィールドのサニタイズとURL検証
	bio := s.sanitizer.Sanitize(input.Bio)
	location := s.sanitizer.Sanitize(input.Location)

	if input.Website != "" {
		if err := s.urlGuard.ValidateURL(input.Website); err != nil {
			return nil, "", model.NewInvalidURLError("website", err.Error())
		}
	}
	if input.AvatarURL != "" {
		if err := s.urlGuard.ValidateURL(input.AvatarURL); err != nil {
			return nil, "", model.NewInvalidURLError("avatar_url", err.Error())
		}
	}

	// 3. 事前重複チェック（助言的）。別のuser_idが既に名前を持っていれば早期に失敗する。
	existing, err := s.profileRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, "", s.datastoreError("check username", err)
	}
	if existing != nil && existing.UserID != identity.SubjectID {
		s.collector.RecordUsernameConflict()
		return nil, "", model.NewUsernameTakenError(username)
	}

	// 4. ユーザーレコードの存在保証
	if _, _, err := s.EnsureUser(ctx, identity); err != nil {
		return nil, "", err
	}

	// 5. user_idをキーに1文でUPSERT
	saved, err := s.profileRepo.Upsert(ctx, &model.Profile{
		UserID:    identity.SubjectID,
		Username:  username,
		Bio:       bio,
		Location:  location,
		Website:   input.Website,
		AvatarURL: input.AvatarURL,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			s.collector.RecordUsernameConflict()
			return nil, "", model.NewUsernameTakenError(username)
		}
		return nil, "", s.datastoreError("upsert profile", err)
	}

	// ミラーフィールドの更新はベストエフォート。
	// Profileが真実のソースであり、ここでの失敗はロールバックしない。
	warning := ""
	if err := s.userRepo.UpdateDisplayName(ctx, identity.SubjectID, username); err != nil {
		slog.Warn("failed to sync display name mirror",
			slog.String("user_id", identity.SubjectID),
			slog.String("error", err.Error()),
		)
		warning = WarnDisplayNameNotSynced
	}

	slog.Info("profile updated",
		slog.String("user_id", saved.UserID),
		slog.String("username", saved.Username),
	)

	return saved, warning, nil
}

// Withdraw はユーザーの退会処理を実行する。
// セッションを明示的に失効させてからユーザー行を削除する。
// profilesと残存sessionsはCASCADE削除される。
func (s *Service) Withdraw(ctx context.Context, identity model.Identity) error {
	if identity.SubjectID == "" {
		return model.NewUnauthorizedError()
	}

	user, err := s.userRepo.FindByID(ctx, identity.SubjectID)
	if err != nil {
		return s.datastoreError("find user", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	// 失効をFK構成のCASCADEだけに依存させない
	if err := s.sessions.DeleteByUserID(ctx, identity.SubjectID); err != nil {
		return s.datastoreError("revoke sessions", err)
	}

	if err := s.userRepo.DeleteByID(ctx, identity.SubjectID); err != nil {
		return s.datastoreError("delete user", err)
	}

	slog.Info("user withdrawn", slog.String("user_id", identity.SubjectID))
	return nil
}

// validateUsername はユーザー名の形式を検証する。
// 空、空白を含む、許可外文字、長すぎる場合はINVALID_USERNAMEを返す。
func validateUsername(username string) error {
	if username == "" {
		return model.NewInvalidUsernameError("空のユーザー名は使用できません")
	}
	if strings.ContainsAny(username, " \t\n\r") {
		return model.NewInvalidUsernameError("空白を含めることはできません")
	}
	if len(username) > maxUsernameLength {
		return model.NewInvalidUsernameError(fmt.Sprintf("%d文字以内で入力してください", maxUsernameLength))
	}
	if !usernamePattern.MatchString(username) {
		return model.NewInvalidUsernameError("英数字とアンダースコア以外の文字が含まれています")
	}
	return nil
}

// datastoreError はデータストア障害をログに記録し、汎用エラーに変換する。
// 詳細は開発モードのときのみレスポンスに含める。
func (s *Service) datastoreError(op string, err error) error {
	slog.Error("datastore operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	detail := ""
	if s.development {
		detail = err.Error()
	}
	return model.NewDatastoreError(detail)
}
