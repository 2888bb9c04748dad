package auth

import (
	"net/url"
	"strings"
)

// コールバック後の遷移先パス。
const (
	// DefaultNextPath はnextパラメータ未指定時のログイン後の遷移先。
	DefaultNextPath = "/dashboard"
	// ErrorPath はコールバック失敗時の遷移先。
	ErrorPath = "/auth/error"
)

// FailureReason はコールバック失敗の理由トークン。
// リダイレクトURLのクエリパラメータにそのまま載るため、
// プロバイダーの生のエラーメッセージは決して含めない。
type FailureReason string

const (
	// ReasonInvalidState はstateパラメータがCookieの値と一致しなかったことを示す。
	ReasonInvalidState FailureReason = "invalid_state"
	// ReasonMissingCode はコールバックにcodeもerrorも無かったことを示す。
	ReasonMissingCode FailureReason = "missing_code"
	// ReasonProviderError はプロバイダーがerrorパラメータを返したことを示す。
	ReasonProviderError FailureReason = "provider_error"
	// ReasonExchangeFailed は認可コードの交換に失敗したことを示す
	// （ネットワーク障害、消費済みコード、期限切れコードを含む）。
	ReasonExchangeFailed FailureReason = "exchange_failed"
)

// Outcome はIdentity Exchangeの結果を表す。
type Outcome struct {
	Success bool
	Reason  FailureReason // Success=falseの場合のみ有効
}

// RedirectParams はリダイレクト先の解決に必要な入力。
// すべて値渡しで、ResolveRedirectはI/Oを行わない純関数。
type RedirectParams struct {
	// Origin はリクエスト自身のオリジン（例: "https://example.com"）。
	Origin string
	// NextPath はコールバックのnextクエリパラメータ。空ならDefaultNextPath。
	NextPath string
	// ForwardedHost / ForwardedProto はリバースプロキシが付与するヘッダーの値。
	// 本番モードでのみ信頼する。
	ForwardedHost  string
	ForwardedProto string
	// IsDevelopment が真のときはプロキシヘッダーを無視し、Originをそのまま使う。
	IsDevelopment bool
}

// ResolveRedirect はExchangeの結果からリダイレクト先URLを決定する。
// 全てのOutcomeがちょうど1つの遷移先に対応する（フォールスルーなし）。
//   - 成功: 解決済みオリジン + 検証済みnextパス
//   - 失敗: リクエストのオリジン + エラーページ（理由トークンをURLエンコードして付与）
func ResolveRedirect(outcome Outcome, p RedirectParams) string {
	if !outcome.Success {
		reason := outcome.Reason
		if reason == "" {
			reason = ReasonExchangeFailed
		}
		return p.Origin + ErrorPath + "?reason=" + url.QueryEscape(string(reason))
	}

	return resolveOrigin(p) + sanitizeNextPath(p.NextPath)
}

// resolveOrigin は外部から見えるオリジンを決定する。
// 開発モードではリクエスト自身のオリジンを使う。
// 本番ではプロキシのX-Forwarded-Host/X-Forwarded-Protoがあればそれを優先し、
// 無ければリクエスト自身のオリジンにフォールバックする。
func resolveOrigin(p RedirectParams) string {
	if p.IsDevelopment || p.ForwardedHost == "" {
		return p.Origin
	}

	proto := p.ForwardedProto
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + p.ForwardedHost
}

// sanitizeNextPath はnextパラメータを検証し、安全な相対パスを返す。
// オープンリダイレクト防止のため、単一の "/" で始まる相対パスのみ受け付ける。
// 絶対URL、"//host"形式、バックスラッシュを含むパスはデフォルトに差し替える。
func sanitizeNextPath(next string) string {
	if next == "" {
		return DefaultNextPath
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return DefaultNextPath
	}
	if strings.ContainsAny(next, "\\") {
		return DefaultNextPath
	}
	// "/\x00"等の制御文字や ":" 経由のスキーム混入を弾く
	if parsed, err := url.Parse(next); err != nil || parsed.IsAbs() || parsed.Host != "" {
		return DefaultNextPath
	}
	return next
}
