package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/accountman/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// PostgresProfileRepoはProfileRepositoryインターフェースを満たすことを検証
func TestPostgresProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ProfileRepository = (*PostgresProfileRepo)(nil)
}

// PostgresSessionRepoはSessionRepositoryインターフェースを満たすことを検証
func TestPostgresSessionRepo_ImplementsInterface(t *testing.T) {
	var _ SessionRepository = (*PostgresSessionRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresProfileRepoが正しく初期化されることを検証
func TestNewPostgresProfileRepo_Initializes(t *testing.T) {
	repo := NewPostgresProfileRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// NewPostgresSessionRepoが正しく初期化されることを検証
func TestNewPostgresSessionRepo_Initializes(t *testing.T) {
	repo := NewPostgresSessionRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// セッションの有効期限判定の期待動作をDB接続なしで検証
func TestSessionExpiry_Concept(t *testing.T) {
	expired := &model.Session{
		ID:        "s-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	active := &model.Session{
		ID:        "s-2",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	if !expired.ExpiresAt.Before(time.Now()) {
		t.Error("expired session should have past ExpiresAt")
	}
	if active.ExpiresAt.Before(time.Now()) {
		t.Error("active session should have future ExpiresAt")
	}
}
