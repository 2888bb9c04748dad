package security

import (
	"strings"
	"testing"
)

func TestValidateURL_AllowsPublicURLs(t *testing.T) {
	guard := NewURLGuard()

	valid := []string{
		"https://example.com",
		"https://example.com/path?query=1",
		"http://example.com",
		"https://blog.example.co.jp/entry/123",
		"https://93.184.216.34/", // パブリックIP
	}

	for _, rawURL := range valid {
		if err := guard.ValidateURL(rawURL); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", rawURL, err)
		}
	}
}

func TestValidateURL_BlocksPrivateNetworks(t *testing.T) {
	guard := NewURLGuard()

	tests := []struct {
		name   string
		rawURL string
	}{
		{"RFC1918 10.x", "http://10.0.0.5/"},
		{"RFC1918 172.16.x", "http://172.16.0.1/"},
		{"RFC1918 192.168.x", "http://192.168.1.1/admin"},
		{"ループバック", "http://127.0.0.1:8080/"},
		{"クラウドメタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"カレントネットワーク", "http://0.0.0.0/"},
		{"IPv6ループバック", "http://[::1]/"},
		{"IPv6リンクローカル", "http://[fe80::1]/"},
		{"localhostホスト名", "http://localhost/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.rawURL); err == nil {
				t.Errorf("ValidateURL(%q) = nil, want error", tt.rawURL)
			}
		})
	}
}

func TestValidateURL_BlocksDisallowedSchemes(t *testing.T) {
	guard := NewURLGuard()

	tests := []string{
		"javascript:alert(1)",
		"file:///etc/passwd",
		"ftp://example.com/file",
		"data:text/html,<script>alert(1)</script>",
	}

	for _, rawURL := range tests {
		if err := guard.ValidateURL(rawURL); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", rawURL)
		}
	}
}

func TestValidateURL_EmptyAndMalformed(t *testing.T) {
	guard := NewURLGuard()

	if err := guard.ValidateURL(""); err == nil {
		t.Error("empty URL should be rejected")
	}
	if err := guard.ValidateURL("https://"); err == nil {
		t.Error("URL without host should be rejected")
	}
	if err := guard.ValidateURL("not a url at all"); err == nil {
		t.Error("malformed URL should be rejected")
	}
}

func TestValidateURL_SchemeCaseInsensitive(t *testing.T) {
	guard := NewURLGuard()

	if err := guard.ValidateURL("HTTPS://example.com"); err != nil {
		t.Errorf("uppercase scheme should be allowed: %v", err)
	}
	if err := guard.ValidateURL("JavaScript:alert(1)"); err == nil {
		t.Error("uppercase javascript scheme should be rejected")
	}
}

func TestValidateURL_ErrorMentionsBlockedIP(t *testing.T) {
	guard := NewURLGuard()

	err := guard.ValidateURL("http://192.168.1.1/")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "192.168.1.1") {
		t.Errorf("error should mention the blocked IP: %v", err)
	}
}
