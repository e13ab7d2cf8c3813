// Package app はコマンドの解析と依存関係のワイヤリングを行う。
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

	"github.com/hitoshi/adboard/internal/access"
	"github.com/hitoshi/adboard/internal/advertisement"
	"github.com/hitoshi/adboard/internal/attempts"
	"github.com/hitoshi/adboard/internal/auth"
	"github.com/hitoshi/adboard/internal/config"
	"github.com/hitoshi/adboard/internal/database"
	"github.com/hitoshi/adboard/internal/handler"
	"github.com/hitoshi/adboard/internal/logger"
	"github.com/hitoshi/adboard/internal/metrics"
	"github.com/hitoshi/adboard/internal/middleware"
	"github.com/hitoshi/adboard/internal/repository"
	"github.com/hitoshi/adboard/internal/security"
	"github.com/hitoshi/adboard/internal/tracing"
	"github.com/hitoshi/adboard/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	serviceName     = "adboard"
	dbPingTimeout   = 5 * time.Second
	healthcheckPort = "8080"
)

// Init はアプリケーションの初期化を行う。
// 設定を読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを作り直す
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse LOG_LEVEL: %w", err)
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = healthcheckPort
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.Env),
		slog.String("addr", cfg.Addr()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateAdmin:
		return runCreateAdmin(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// services はHTTP層とCLIが共有するドメインサービス群。
type services struct {
	guard          *access.Guard
	auth           *auth.Service
	users          *user.Service
	advertisements *advertisement.Service
}

// newServices はリポジトリからドメインサービスまでを組み立てる。
// counterがnilの場合はログイン失敗回数による制限を行わない。
func newServices(cfg *config.Config, db *sql.DB, counter auth.LoginAttemptCounter, collector metrics.MetricsCollector) (*services, error) {
	userRepo := repository.NewPostgresUserRepo(db)
	adRepo := repository.NewPostgresAdvertisementRepo(db)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte(cfg.AccessTokenSecret),
		Lifetime: cfg.TokenLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	authService := auth.NewService(
		userRepo,
		auth.NewBcryptHasher(cfg.BcryptCost),
		tokens,
		counter,
		collector,
		auth.ServiceConfig{
			TokenType:        cfg.AccessTokenType,
			MaxLoginFailures: cfg.LoginMaxFailures,
		},
	)
	guard := access.NewGuard(tokens, userRepo, collector)

	return &services{
		guard:          guard,
		auth:           authService,
		users:          user.NewService(userRepo, guard, authService),
		advertisements: advertisement.NewService(adRepo, guard, security.NewTextSanitizer()),
	}, nil
}

// newAttemptCounter はログイン失敗回数のストアを生成する。
// REDIS_URLが設定されていればRedis、なければプロセス内メモリを使う。
func newAttemptCounter(ctx context.Context, cfg *config.Config) (auth.LoginAttemptCounter, func(), error) {
	if cfg.RedisURL == "" {
		store := attempts.NewMemoryStore(cfg.LoginLockout)
		slog.Info("login attempt counter: in-memory")
		return store, store.Stop, nil
	}

	store, err := attempts.NewRedisStore(ctx, cfg.RedisURL, cfg.LoginLockout)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("login attempt counter: redis")
	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")
	return db, nil
}

// newHTTPHandler はルーターを構築し、OpenTelemetryの計装でラップする。
func newHTTPHandler(cfg *config.Config, svc *services, db handler.HealthChecker, limiter *middleware.RateLimiter, collector metrics.MetricsCollector, gatherer prometheus.Gatherer) http.Handler {
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		UserResolver:      svc.guard,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(gatherer),

		HealthChecker: db,

		AuthService:          svc.auth,
		UserService:          svc.users,
		AdvertisementService: svc.advertisements,
	})

	return otelhttp.NewHandler(router, serviceName)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. トレース
	shutdownTracing, err := tracing.Init(ctx, cfg.OTLPEndpoint, serviceName, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("failed to shutdown tracing", slog.String("error", err.Error()))
		}
	}()

	// 3. ログイン失敗カウンタ
	counter, closeCounter, err := newAttemptCounter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create login attempt counter: %w", err)
	}
	defer closeCounter()

	// 4. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 5. ドメインサービス
	svc, err := newServices(cfg, db, counter, collector)
	if err != nil {
		return err
	}

	// 6. ルーター
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer limiter.Stop()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newHTTPHandler(cfg, svc, db, limiter, collector, reg),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 7. HTTPサーバーの起動
	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runCreateAdmin はADMIN_USERNAMEとADMIN_PASSWORDで初期管理者を用意する。
// 既存ユーザーの場合は昇格のみ行い、パスワードは変更しない。
func runCreateAdmin(ctx context.Context, cfg *config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set")
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := newServices(cfg, db, nil, metrics.Nop{})
	if err != nil {
		return err
	}

	admin, created, err := svc.users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin user ready",
		slog.Int64("user_id", admin.ID),
		slog.String("username", admin.Username),
		slog.Bool("created", created),
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
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
