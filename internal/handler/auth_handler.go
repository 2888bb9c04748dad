// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/accountman/internal/auth"
	"github.com/hitoshi/accountman/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
	oauthNextCookie   = "auth_next"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentIdentity(ctx context.Context, sessionID string) (*model.Identity, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int  // セッションCookieの有効期間（秒）
	IsDevelopment bool // 真のときX-Forwarded-*ヘッダーを信頼しない
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Login はGoogle OAuthフローを開始する。
// nextクエリパラメータはCookieに退避し、コールバック成功時の遷移先に使う。
// GET /auth/google/login?next=/path
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// nextをCookieに退避（プロバイダーは任意パラメータをエコーしない）
	if next := r.URL.Query().Get("next"); next != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     oauthNextCookie,
			Value:    next,
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	url := h.service.GetLoginURL(state)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// すべての入り方（成功、プロバイダーエラー、code欠落、交換失敗）が
// ちょうど1つのリダイレクト先に解決される。失敗時のリダイレクトURLには
// 汎用の理由トークンのみを載せ、プロバイダーの生のエラー文字列は載せない。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	params := h.redirectParams(r)

	// 1. stateの検証（CSRF対策）
	// 失敗してもブラウザが行き止まりにならないよう、他の失敗と同じく
	// 理由トークン付きのエラーページへリダイレクトする。
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		h.redirectFailure(w, r, auth.ReasonInvalidState, params)
		return
	}

	// stateクッキーを削除
	h.clearCookie(w, oauthStateCookie, "")
	h.clearCookie(w, oauthNextCookie, "")

	// 2. プロバイダーがエラーを返した場合
	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		slog.Warn("oauth provider returned error",
			slog.String("error", providerErr),
		)
		h.redirectFailure(w, r, auth.ReasonProviderError, params)
		return
	}

	// 3. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		h.redirectFailure(w, r, auth.ReasonMissingCode, params)
		return
	}

	// 4. 交換・プロビジョニング・セッション発行
	session, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.redirectFailure(w, r, auth.ReasonExchangeFailed, params)
		return
	}

	// 5. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 6. 検証済みnextパスにリダイレクト
	target := auth.ResolveRedirect(auth.Outcome{Success: true}, params)
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieの取得
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	h.clearCookie(w, sessionCookieName, h.config.CookieDomain)

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のログインIdentityを返す。
// セッションが保持するスナップショットから応答するため、usersテーブルには触れない。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	identity, err := h.service.GetCurrentIdentity(r.Context(), cookie.Value)
	if err != nil {
		slog.Warn("failed to get current identity", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":         identity.SubjectID,
		"email":      identity.Email,
		"name":       identity.Name,
		"avatar_url": identity.AvatarURL,
		"provider":   identity.Provider,
	})
}

// redirectParams はリクエストからRedirect Resolverの入力を組み立てる。
func (h *AuthHandler) redirectParams(r *http.Request) auth.RedirectParams {
	next := ""
	if nextCookie, err := r.Cookie(oauthNextCookie); err == nil {
		next = nextCookie.Value
	}

	return auth.RedirectParams{
		Origin:         requestOrigin(r),
		NextPath:       next,
		ForwardedHost:  r.Header.Get("X-Forwarded-Host"),
		ForwardedProto: r.Header.Get("X-Forwarded-Proto"),
		IsDevelopment:  h.config.IsDevelopment,
	}
}

// redirectFailure は失敗理由トークン付きのエラーページへ302リダイレクトする。
func (h *AuthHandler) redirectFailure(w http.ResponseWriter, r *http.Request, reason auth.FailureReason, params auth.RedirectParams) {
	target := auth.ResolveRedirect(auth.Outcome{Success: false, Reason: reason}, params)
	http.Redirect(w, r, target, http.StatusFound)
}

// clearCookie は指定されたCookieを削除する。
func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requestOrigin はリクエスト自身のオリジン（scheme://host）を返す。
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
