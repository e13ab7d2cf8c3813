package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/adboard/internal/metrics"
	"github.com/hitoshi/adboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	HealthChecker HealthChecker

	AuthService          AuthServiceInterface
	UserService          UserServiceInterface
	AdvertisementService AdvertisementServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// 認証が必要なルートでは Auth → RateLimit(General) を、
// 登録・ログインには RateLimit(AuthEndpoint) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(collector))

	userHandler := NewUserHandler(deps.AuthService, deps.UserService)
	adHandler := NewAdvertisementHandler(deps.AdvertisementService)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthEndpointMiddleware())
		r.Post("/api/users/register", userHandler.Register)
		r.Post("/api/users/auth", userHandler.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Get("/api/advertisements", adHandler.List)
		r.Get("/api/advertisements/{id}", adHandler.Get)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/users/me", userHandler.Me)
		r.Post("/api/users/me/password", userHandler.ChangePassword)
		r.Post("/api/users/promote-to-admin", userHandler.PromoteToAdmin)

		r.Post("/api/advertisements/create", adHandler.Create)
		r.Delete("/api/advertisements/{id}", adHandler.Delete)
	})

	return r
}
