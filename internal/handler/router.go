package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/lifemanager/internal/metrics"
	"github.com/hitoshi/lifemanager/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Identity          *middleware.IdentityMiddleware
	CORSAllowedOrigin string
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	HealthChecker     HealthChecker

	// 認証
	AuthService AuthServiceInterface
	SocialLogin SocialLoginInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// 予定
	ScheduleService ScheduleServiceInterface

	// 収入・支出
	TransactionService TransactionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Identity
//
// Identityは資格情報がなくても未認証としてリクエストを通す。
// 保護されたルートはRequirePrincipalで401を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(middleware.CORSConfig{
		AllowedOrigin:     deps.CORSAllowedOrigin,
		AllowUserIDHeader: deps.Identity.AcceptsUserIDHeader(),
	}))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(deps.Identity.Handler)

	// エラーレスポンスを統一フォーマットにする
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, "指定されたパスが見つかりません。")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, "許可されていないメソッドです。")
	})

	healthHandler := NewHealthHandler(deps.HealthChecker)
	authHandler := NewAuthHandler(deps.AuthService, deps.SocialLogin, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService)
	transactionHandler := NewTransactionHandler(deps.TransactionService)

	// --- 認証不要のルート ---
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)

		// ソーシャルログイン
		r.Get("/oauth2/{provider}", authHandler.OAuthLogin)
		r.Get("/oauth2/callback/{provider}", authHandler.OAuthCallback)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequirePrincipal)

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.GetMe)
			r.Put("/", userHandler.UpdateMe)
			r.Put("/password", userHandler.ChangePassword)
		})

		// 予定管理
		r.Route("/api/schedules", func(r chi.Router) {
			r.Post("/", scheduleHandler.Create)
			r.Get("/", scheduleHandler.List)
			r.Get("/range", scheduleHandler.Range)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", scheduleHandler.Update)
				r.Delete("/", scheduleHandler.Delete)
			})
		})

		// 収入・支出管理
		r.Route("/api/transactions", func(r chi.Router) {
			r.Post("/", transactionHandler.Create)
			r.Get("/", transactionHandler.List)
			r.Get("/summary", transactionHandler.Summary)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", transactionHandler.Update)
				r.Delete("/", transactionHandler.Delete)
			})
		})
	})

	return r
}
