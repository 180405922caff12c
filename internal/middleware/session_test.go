package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/studysync/internal/model"
)

// --- モック定義 ---

type mockUserResolver struct {
	currentUserFn     func(ctx context.Context, rawToken string) (*model.User, error)
	fromHelperTokenFn func(ctx context.Context, tokenString string) (*model.User, error)
}

func (m *mockUserResolver) CurrentUser(ctx context.Context, rawToken string) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, rawToken)
	}
	return nil, model.NewUnauthorizedError()
}

func (m *mockUserResolver) UserFromHelperToken(ctx context.Context, tokenString string) (*model.User, error) {
	if m.fromHelperTokenFn != nil {
		return m.fromHelperTokenFn(ctx, tokenString)
	}
	return nil, model.NewUnauthorizedError()
}

// --- テスト ---

func TestAuthMiddleware_ValidCookie_InjectsUserID(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, rawToken string) (*model.User, error) {
			if rawToken == "valid-token" {
				return &model.User{ID: "user-123"}, nil
			}
			return nil, model.NewUnauthorizedError()
		},
	}

	mw := NewAuthMiddleware(resolver)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
}

func TestAuthMiddleware_ValidBearerToken_InjectsUserID(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, rawToken string) (*model.User, error) {
			t.Error("CurrentUser should not be called for bearer auth")
			return nil, model.NewUnauthorizedError()
		},
		fromHelperTokenFn: func(ctx context.Context, tokenString string) (*model.User, error) {
			if tokenString == "helper-jwt" {
				return &model.User{ID: "user-helper"}, nil
			}
			return nil, model.NewUnauthorizedError()
		},
	}

	mw := NewAuthMiddleware(resolver)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sync/voice", nil)
	req.Header.Set("Authorization", "Bearer helper-jwt")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-helper" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-helper")
	}
}

func TestAuthMiddleware_BearerTakesPrecedenceOverCookie(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, rawToken string) (*model.User, error) {
			return &model.User{ID: "cookie-user"}, nil
		},
		fromHelperTokenFn: func(ctx context.Context, tokenString string) (*model.User, error) {
			return &model.User{ID: "bearer-user"}, nil
		},
	}

	mw := NewAuthMiddleware(resolver)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer some-jwt")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if capturedUserID != "bearer-user" {
		t.Errorf("userID = %q, want %q (bearer should win)", capturedUserID, "bearer-user")
	}
}

func TestAuthMiddleware_NoCredentials_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_EmptyCookie_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: ""})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_MalformedAuthorizationHeader_Returns401(t *testing.T) {
	mw := NewAuthMiddleware(&mockUserResolver{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	for _, authz := range []string{"Basic abc", "Bearer", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set("Authorization", authz)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("authz %q: status = %d, want %d", authz, resp.StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestAuthMiddleware_ExpiredSession_Returns401(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, rawToken string) (*model.User, error) {
			// 期限切れセッションはUNAUTHORIZEDとして返ってくる
			return nil, model.NewUnauthorizedError()
		},
	}
	mw := NewAuthMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "expired-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ResolverError_Returns401(t *testing.T) {
	resolver := &mockUserResolver{
		currentUserFn: func(ctx context.Context, rawToken string) (*model.User, error) {
			return nil, context.DeadlineExceeded
		},
	}
	mw := NewAuthMiddleware(resolver)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "some-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	ctx := context.Background()
	_, err := UserIDFromContext(ctx)
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDContextKey, "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}
