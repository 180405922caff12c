package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/studysync/internal/metrics"
	"github.com/hitoshi/studysync/internal/middleware"
)

// HealthChecker はDB疎通確認のためのインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 同期サービス
	ChatService     ChatServiceInterface
	ScheduleService ScheduleServiceInterface
	VoiceService    VoiceServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → CSRF
//	→ AuthMiddleware → RateLimitMiddleware(General)
//
// バッチ書き込みエンドポイント（POST/PUT /api/sync/*）には
// さらにバッチ専用レート制限を重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	chatHandler := NewChatHandler(deps.ChatService, deps.Metrics)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService, deps.Metrics)
	voiceHandler := NewVoiceHandler(deps.VoiceService, deps.Metrics)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Post("/helper-token", authHandler.IssueHelperToken)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		batchLimit := deps.RateLimiter.BatchMiddleware()

		r.Route("/api/sync/chat", func(r chi.Router) {
			r.Get("/", chatHandler.Get)
			r.With(batchLimit).Post("/", chatHandler.Post)
			r.With(batchLimit).Put("/", chatHandler.Put)
			r.Delete("/", chatHandler.Delete)
		})

		r.Route("/api/sync/schedule", func(r chi.Router) {
			r.Get("/", scheduleHandler.Get)
			r.With(batchLimit).Post("/", scheduleHandler.Post)
			r.With(batchLimit).Put("/", scheduleHandler.Put)
			r.Delete("/", scheduleHandler.Delete)
		})

		r.Route("/api/sync/voice", func(r chi.Router) {
			r.Get("/", voiceHandler.Get)
			r.With(batchLimit).Post("/", voiceHandler.Post)
			r.With(batchLimit).Put("/", voiceHandler.Put)
			r.Delete("/", voiceHandler.Delete)
		})

		// 退会
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", authHandler.Withdraw)
		})
	})

	return r
}

// newHealthHandler はDB疎通込みのヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
