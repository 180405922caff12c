// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/studysync/internal/model"
)

// SessionCookieName はセッショントークンを格納するCookieの名前。
// ハンドラーのSet-Cookieと共有する。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// UserResolver は認証情報からユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type UserResolver interface {
	// CurrentUser はCookieの平文セッショントークンからユーザーを解決する。
	CurrentUser(ctx context.Context, rawToken string) (*model.User, error)
	// UserFromHelperToken はBearerのヘルパートークンからユーザーを解決する。
	UserFromHelperToken(ctx context.Context, tokenString string) (*model.User, error)
}

// NewAuthMiddleware はセッションCookieまたはAuthorization: Bearerの
// ヘルパートークンを検証するミドルウェアを返す。ownerIdはここで解決した
// ユーザーIDだけを使い、リクエストボディからは決して受け取らない。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolveUser(r, resolver)
			if err != nil {
				if apiErr, ok := err.(*model.APIError); ok {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to resolve user",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveUser はBearerトークンを優先し、なければCookieで認証する。
func resolveUser(r *http.Request, resolver UserResolver) (*model.User, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		token, ok := strings.CutPrefix(authz, "Bearer ")
		if !ok || token == "" {
			return nil, model.NewUnauthorizedError()
		}
		return resolver.UserFromHelperToken(r.Context(), token)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, model.NewUnauthorizedError()
	}
	return resolver.CurrentUser(r.Context(), cookie.Value)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
