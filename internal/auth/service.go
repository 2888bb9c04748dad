// Package auth はOAuth認証コールバックの交換処理とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/accountman/internal/metrics"
	"github.com/hitoshi/accountman/internal/model"
	"github.com/hitoshi/accountman/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	// コードはワンタイムであり、実装はリトライしてはならない。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// UserProvisioner は認証済みIdentityに対応するユーザーレコードの
// 冪等な作成インターフェース。profileパッケージのServiceが実装する。
type UserProvisioner interface {
	// EnsureUser はユーザーレコードが存在することを保証する。
	// 既存の場合はその行をそのまま返し、createdにfalseを返す。
	EnsureUser(ctx context.Context, identity model.Identity) (user *model.User, created bool, err error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// コールバックの交換とセッション発行のみを担い、
// user/profileの書き込みはUserProvisionerに委譲する。
type Service struct {
	oauth       OAuthProvider
	provisioner UserProvisioner
	sessionRepo repository.SessionRepository
	collector   metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	provisioner UserProvisioner,
	sessionRepo repository.SessionRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		provisioner: provisioner,
		sessionRepo: sessionRepo,
		collector:   collector,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 認可コードはちょうど1回だけ交換する。消費済みコードの再交換は
// プロバイダー側で失敗し、その失敗をリトライで隠蔽しない。
// 交換に成功したら、ユーザーレコードの存在を冪等に保証してから
// Identityスナップショット付きのセッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	start := time.Now()
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	s.collector.RecordExchangeLatency(time.Since(start))
	if err != nil {
		s.collector.RecordLoginFailure("exchange_failed")
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity := model.Identity{
		SubjectID: userInfo.ProviderUserID,
		Email:     userInfo.Email,
		Name:      userInfo.Name,
		AvatarURL: userInfo.AvatarURL,
		Provider:  userInfo.Provider,
	}

	// 2. ユーザーレコードの存在を冪等に保証
	user, created, err := s.provisioner.EnsureUser(ctx, identity)
	if err != nil {
		s.collector.RecordLoginFailure("provision_failed")
		return nil, fmt.Errorf("failed to provision user: %w", err)
	}

	if created {
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
	} else {
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", identity.Provider),
		)
	}

	// 3. セッションを発行
	session, err := s.createSession(ctx, identity)
	if err != nil {
		s.collector.RecordLoginFailure("session_failed")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.collector.RecordLoginSuccess()
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentIdentity はセッションから現在のIdentityを取得する。
// セッションは発行時のIdentityスナップショットを保持しているため、
// ここでデータストアのusersテーブルには触れない。
func (s *Service) GetCurrentIdentity(ctx context.Context, sessionID string) (*model.Identity, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	identity := session.Identity
	return &identity, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, identity model.Identity) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		Identity:  identity,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
