package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/lifemanager/internal/auth"
	"github.com/hitoshi/lifemanager/internal/config"
	"github.com/hitoshi/lifemanager/internal/database"
	"github.com/hitoshi/lifemanager/internal/handler"
	"github.com/hitoshi/lifemanager/internal/identity"
	"github.com/hitoshi/lifemanager/internal/ledger"
	"github.com/hitoshi/lifemanager/internal/logger"
	"github.com/hitoshi/lifemanager/internal/metrics"
	"github.com/hitoshi/lifemanager/internal/middleware"
	"github.com/hitoshi/lifemanager/internal/repository"
	"github.com/hitoshi/lifemanager/internal/schedule"
	"github.com/hitoshi/lifemanager/internal/security"
	"github.com/hitoshi/lifemanager/internal/token"
	"github.com/hitoshi/lifemanager/internal/user"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログ形式とレベルを切り替える
	if _, err := logger.Configure(w, cfg.LogFormat, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, known := lookupCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !known {
		slog.Warn("unknown command, falling back to serve", slog.String("arg", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("app_env", cfg.AppEnv),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスレジストリ
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. 依存関係のワイヤリング
	router, err := buildRouter(cfg, db, reg)
	if err != nil {
		return err
	}

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// buildRouter はリポジトリからハンドラーまでを組み立ててルーターを返す。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, error) {
	mc := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	scheduleRepo := repository.NewPostgresScheduleRepo(db)
	transactionRepo := repository.NewPostgresTransactionRepo(db)

	// 2. セキュリティ部品の初期化
	sanitizer := security.NewTextSanitizer()
	hasher, err := auth.NewBcryptHasher(cfg.PasswordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}
	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token codec: %w", err)
	}

	// 3. 認証サービスの初期化
	resolver := auth.NewAccountResolver(userRepo, hasher, sanitizer)
	authService := auth.NewService(resolver, codec, mc)
	orchestrator := auth.NewLoginOrchestrator(
		oauthProviders(cfg), identity.DefaultRegistry(), resolver, codec, cfg.OAuth2RedirectURI, mc,
	)

	identityCfg := middleware.IdentityConfig{
		Decoder:           codec,
		AllowUserIDHeader: cfg.AllowUserIDHeader,
		Metrics:           mc,
	}
	if cfg.VerifyAccount {
		identityCfg.AccountChecker = auth.NewCachedAccountChecker(userRepo, auth.DefaultAccountCacheTTL)
	}
	if cfg.AllowUserIDHeader {
		slog.Warn("X-User-Id header authentication is enabled",
			slog.String("app_env", cfg.AppEnv),
		)
	}

	// 4. ドメインサービスの初期化
	userService := user.NewService(userRepo, sanitizer)
	scheduleService := schedule.NewService(scheduleRepo, userRepo, sanitizer)
	ledgerService := ledger.NewService(transactionRepo, userRepo, sanitizer)

	// 5. ルーターの構築
	return handler.NewRouter(&handler.RouterDeps{
		Identity:          middleware.NewIdentityMiddleware(identityCfg),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		Metrics:           mc,
		MetricsHandler:    metrics.Handler(reg),
		HealthChecker:     db,

		AuthService: authService,
		SocialLogin: orchestrator,
		AuthConfig:  handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},

		UserService:        handler.NewUserServiceAdapter(userService, authService),
		ScheduleService:    scheduleService,
		TransactionService: ledgerService,
	}), nil
}

// oauthProviders はクライアントIDが設定されたプロバイダーだけを返す。
func oauthProviders(cfg *config.Config) []auth.OAuthProvider {
	var providers []auth.OAuthProvider
	if cfg.Kakao.Enabled() {
		providers = append(providers, auth.NewOAuth2Provider(
			auth.KakaoConfig(cfg.Kakao.ClientID, cfg.Kakao.ClientSecret, cfg.Kakao.RedirectURL),
		))
	}
	if cfg.Google.Enabled() {
		providers = append(providers, auth.NewOAuth2Provider(
			auth.GoogleConfig(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL),
		))
	}
	for _, p := range providers {
		slog.Info("social login provider enabled", slog.String("provider", p.Name()))
	}
	return providers
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	v, err := database.MigrateUp(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(v.Version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
