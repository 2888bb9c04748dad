package auth

import "testing"

func TestResolveRedirect_Success(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		params  RedirectParams
		want    string
	}{
		{
			name:    "next未指定はデフォルトの遷移先",
			outcome: Outcome{Success: true},
			params:  RedirectParams{Origin: "http://localhost:8080"},
			want:    "http://localhost:8080/dashboard",
		},
		{
			name:    "正当な相対パスはそのまま使う",
			outcome: Outcome{Success: true},
			params:  RedirectParams{Origin: "http://localhost:8080", NextPath: "/settings/profile"},
			want:    "http://localhost:8080/settings/profile",
		},
		{
			name:    "クエリ付きの相対パスも許容",
			outcome: Outcome{Success: true},
			params:  RedirectParams{Origin: "http://localhost:8080", NextPath: "/items?page=2"},
			want:    "http://localhost:8080/items?page=2",
		},
		{
			name:    "本番モードではX-Forwarded-Host/Protoを信頼する",
			outcome: Outcome{Success: true},
			params: RedirectParams{
				Origin:         "http://10.0.0.5:8080",
				NextPath:       "/dashboard",
				ForwardedHost:  "app.example.com",
				ForwardedProto: "https",
			},
			want: "https://app.example.com/dashboard",
		},
		{
			name:    "X-Forwarded-Proto未指定ならhttpsを仮定",
			outcome: Outcome{Success: true},
			params: RedirectParams{
				Origin:        "http://10.0.0.5:8080",
				ForwardedHost: "app.example.com",
			},
			want: "https://app.example.com/dashboard",
		},
		{
			name:    "開発モードではプロキシヘッダーを無視する",
			outcome: Outcome{Success: true},
			params: RedirectParams{
				Origin:         "http://localhost:8080",
				ForwardedHost:  "evil.example.com",
				ForwardedProto: "https",
				IsDevelopment:  true,
			},
			want: "http://localhost:8080/dashboard",
		},
		{
			name:    "本番でもForwardedHostが無ければ自身のオリジン",
			outcome: Outcome{Success: true},
			params:  RedirectParams{Origin: "https://app.example.com"},
			want:    "https://app.example.com/dashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRedirect(tt.outcome, tt.params)
			if got != tt.want {
				t.Errorf("ResolveRedirect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRedirect_OpenRedirectGuard(t *testing.T) {
	// すべて不正なnextであり、デフォルトの遷移先に差し替えられるべき
	tests := []struct {
		name string
		next string
	}{
		{"絶対URL", "https://evil.example.com/phish"},
		{"スキーム相対URL", "//evil.example.com/phish"},
		{"バックスラッシュ", "/\\evil.example.com"},
		{"バックスラッシュ混入パス", "/path\\..\\secret"},
		{"スラッシュ無しの相対パス", "dashboard"},
		{"javascriptスキーム", "javascript:alert(1)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRedirect(Outcome{Success: true}, RedirectParams{
				Origin:   "http://localhost:8080",
				NextPath: tt.next,
			})
			want := "http://localhost:8080" + DefaultNextPath
			if got != want {
				t.Errorf("next=%q: ResolveRedirect() = %q, want %q", tt.next, got, want)
			}
		})
	}
}

func TestResolveRedirect_Failure(t *testing.T) {
	tests := []struct {
		name   string
		reason FailureReason
		want   string
	}{
		{"state不一致", ReasonInvalidState, "http://localhost:8080/auth/error?reason=invalid_state"},
		{"codeもerrorも無い", ReasonMissingCode, "http://localhost:8080/auth/error?reason=missing_code"},
		{"プロバイダーエラー", ReasonProviderError, "http://localhost:8080/auth/error?reason=provider_error"},
		{"交換失敗", ReasonExchangeFailed, "http://localhost:8080/auth/error?reason=exchange_failed"},
		{"理由未指定は交換失敗として扱う", "", "http://localhost:8080/auth/error?reason=exchange_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveRedirect(
				Outcome{Success: false, Reason: tt.reason},
				RedirectParams{Origin: "http://localhost:8080", NextPath: "/should-be-ignored"},
			)
			if got != tt.want {
				t.Errorf("ResolveRedirect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveRedirect_FailureIgnoresForwardedHeaders(t *testing.T) {
	// 失敗時はリクエスト自身のオリジンのエラーページに戻す
	got := ResolveRedirect(
		Outcome{Success: false, Reason: ReasonProviderError},
		RedirectParams{
			Origin:         "http://localhost:8080",
			ForwardedHost:  "app.example.com",
			ForwardedProto: "https",
		},
	)
	want := "http://localhost:8080/auth/error?reason=provider_error"
	if got != want {
		t.Errorf("ResolveRedirect() = %q, want %q", got, want)
	}
}

func TestSanitizeNextPath(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", DefaultNextPath},
		{"/profile", "/profile"},
		{"/a/b/c", "/a/b/c"},
		{"//host", DefaultNextPath},
		{"http://evil.example.com", DefaultNextPath},
		{"/ok?x=1&y=2", "/ok?x=1&y=2"},
	}

	for _, tt := range tests {
		if got := sanitizeNextPath(tt.next); got != tt.want {
			t.Errorf("sanitizeNextPath(%q) = %q, want %q", tt.next, got, tt.want)
		}
	}
}
