package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/accountman/internal/model"
)

// mockSessionFinder はSessionFinderのモック実装。
type mockSessionFinder struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Session, error)
	calls        int
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.calls++
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func validSession(id string) *model.Session {
	return &model.Session{
		ID: id,
		Identity: model.Identity{
			SubjectID: "google-sub-123",
			Email:     "taro@example.com",
			Provider:  "google",
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestSessionMiddleware_InjectsIdentity(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return validSession(id), nil
		},
	}

	var got model.Identity
	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := IdentityFromContext(r.Context())
		if err != nil {
			t.Fatalf("IdentityFromContext() error = %v", err)
		}
		got = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.SubjectID != "google-sub-123" {
		t.Errorf("SubjectID = %q", got.SubjectID)
	}
	if got.Email != "taro@example.com" {
		t.Errorf("Email = %q", got.Email)
	}
}

func TestSessionMiddleware_NoCookie_401BeforeHandler(t *testing.T) {
	finder := &mockSessionFinder{}
	handlerCalled := false

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	// ハンドラー（ひいてはデータストア）に到達する前に拒否される
	if handlerCalled {
		t.Error("handler should not be called for unauthenticated request")
	}
	if finder.calls != 0 {
		t.Error("session lookup should not happen without a cookie")
	}
	if !strings.Contains(w.Body.String(), model.ErrCodeUnauthorized) {
		t.Errorf("body should contain UNAUTHORIZED code: %s", w.Body.String())
	}
}

func TestSessionMiddleware_UnknownSession(t *testing.T) {
	finder := &mockSessionFinder{} // FindByIDはnilを返す
	handlerCalled := false

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "unknown"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if handlerCalled {
		t.Error("handler should not be called for unknown session")
	}
}

func TestSessionMiddleware_LookupError(t *testing.T) {
	finder := &mockSessionFinder{
		findByIDFunc: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-abc"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestSessionMiddleware_EmptyCookieValue(t *testing.T) {
	finder := &mockSessionFinder{}

	handler := NewSessionMiddleware(finder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: ""})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestIdentityFromContext_NotSet(t *testing.T) {
	if _, err := IdentityFromContext(context.Background()); err == nil {
		t.Error("expected error for context without identity")
	}
}

func TestContextWithIdentity_RoundTrip(t *testing.T) {
	identity := model.Identity{SubjectID: "sub-1", Email: "a@example.com"}
	ctx := ContextWithIdentity(context.Background(), identity)

	got, err := IdentityFromContext(ctx)
	if err != nil {
		t.Fatalf("IdentityFromContext() error = %v", err)
	}
	if got.SubjectID != "sub-1" {
		t.Errorf("SubjectID = %q", got.SubjectID)
	}
}
