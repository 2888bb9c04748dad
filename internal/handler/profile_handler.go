package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/accountman/internal/middleware"
	"github.com/hitoshi/accountman/internal/model"
	"github.com/hitoshi/accountman/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// GetProfile は呼び出しIdentity自身のプロフィールを取得する。
	GetProfile(ctx context.Context, identity model.Identity) (*model.Profile, error)
	// SetUsername はユーザー名とプロフィールフィールドを設定・更新する。
	// 戻り値のwarningはミラー更新失敗時の部分成功の通知（空なら完全成功）。
	SetUsername(ctx context.Context, identity model.Identity, input profile.ProfileInput) (*model.Profile, string, error)
	// EnsureUser はIdentityに対応するユーザーレコードの存在を冪等に保証する。
	EnsureUser(ctx context.Context, identity model.Identity) (*model.User, bool, error)
	// Withdraw はユーザーの退会処理を実行する。profilesとsessionsはCASCADE削除される。
	Withdraw(ctx context.Context, identity model.Identity) error
}

// profileRequest はプロフィール設定リクエストのJSON表現。
type profileRequest struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Bio       string `json:"bio"`
	Location  string `json:"location"`
	Website   string `json:"website"`
	AvatarURL string `json:"avatar_url"`
}

// profileResponse はプロフィールのJSON表現。
// warningはミラー更新が失敗した場合にのみ含まれる。
type profileResponse struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	Website   string    `json:"website"`
	AvatarURL string    `json:"avatar_url"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Warning   string    `json:"warning,omitempty"`
}

// provisionRequest はユーザー作成リクエストのJSON表現。
// ボディは省略可能。email/nameを指定するとセッションIdentityの値を上書きする。
type provisionRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// userResponse はユーザーレコードのJSON表現。
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{
		service: service,
	}
}

// GetProfile は呼び出しIdentity自身のプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	p, err := h.service.GetProfile(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(p, ""))
}

// SetProfile はユーザー名とプロフィールフィールドを設定・更新する。
// 初回設定と更新を区別せず、user_idをキーにUPSERTされる。
// POST /api/profile
func (h *ProfileHandler) SetProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("body"))
		return
	}

	saved, warning, err := h.service.SetUsername(r.Context(), identity, profile.ProfileInput{
		TargetUserID: req.UserID,
		Username:     req.Username,
		Bio:          req.Bio,
		Location:     req.Location,
		Website:      req.Website,
		AvatarURL:    req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProfileResponse(saved, warning))
}

// ProvisionUser はIdentityに対応するユーザーレコードを冪等に作成する。
// ボディのemail/nameはIdentityの値を上書きする（省略時はIdentityのまま）。
// 新規作成時は201、既存行の返却時は200を返す。
// POST /api/users
func (h *ProfileHandler) ProvisionUser(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// ボディは省略可能だが、存在するなら正しいJSONであること
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingFieldError("body"))
		return
	}
	if req.Email != "" {
		identity.Email = req.Email
	}
	if req.Name != "" {
		identity.Name = req.Name
	}

	user, created, err := h.service.EnsureUser(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}

	writeJSON(w, statusCode, userResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *ProfileHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), identity); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toProfileResponse はドメインのProfileをレスポンス型に変換する。
func toProfileResponse(p *model.Profile, warning string) profileResponse {
	return profileResponse{
		UserID:    p.UserID,
		Username:  p.Username,
		Bio:       p.Bio,
		Location:  p.Location,
		Website:   p.Website,
		AvatarURL: p.AvatarURL,
		JoinedAt:  p.JoinedAt,
		UpdatedAt: p.UpdatedAt,
		Warning:   warning,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}
