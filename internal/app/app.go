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
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/stockflow/internal/auth"
	"github.com/hitoshi/stockflow/internal/config"
	"github.com/hitoshi/stockflow/internal/database"
	"github.com/hitoshi/stockflow/internal/handler"
	"github.com/hitoshi/stockflow/internal/item"
	"github.com/hitoshi/stockflow/internal/logger"
	"github.com/hitoshi/stockflow/internal/metrics"
	"github.com/hitoshi/stockflow/internal/repository"
	"github.com/hitoshi/stockflow/internal/user"
	"github.com/hitoshi/stockflow/internal/web"
	"github.com/hitoshi/stockflow/internal/webclient"
	"github.com/hitoshi/stockflow/internal/worker/cleanup"
)

// dbPingTimeout は起動時のDB到達確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
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
			port = "8000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("frontend_url", cfg.FrontendURL),
		slog.String("token_store", cfg.TokenStore),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWeb:
		return runWeb(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		steps, err := ParseRollbackSteps(args)
		if err != nil {
			return err
		}
		return runMigrate(cfg, steps)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続プールを開き、到達確認を行う。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newTokenStore はTOKEN_STOREに応じたトークンリポジトリを返す。
// 返却するclose関数は呼び出し側で必ず実行すること。
func newTokenStore(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.TokenRepository, func(), error) {
	switch cfg.TokenStore {
	case config.TokenStoreRedis:
		client, err := database.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open token store: %w", err)
		}
		slog.Info("redis token store connected")
		return repository.NewRedisTokenRepo(client, cfg.TokenTTL), func() { client.Close() }, nil
	default:
		return repository.NewPostgresTokenRepo(db), func() {}, nil
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	itemRepo := repository.NewPostgresItemRepo(db)
	tokenRepo, closeTokenStore, err := newTokenStore(context.Background(), cfg, db)
	if err != nil {
		return err
	}
	defer closeTokenStore()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Timeout:      cfg.OAuthExchangeTimeout,
	})
	stateSigner := auth.NewStateSigner(cfg.SessionSecret, cfg.OAuthStateTTL)
	userService := user.NewService(userRepo)
	authService := auth.NewService(
		oauthProvider, stateSigner, userService, tokenRepo, collector,
		auth.ServiceConfig{
			TokenTTL:        cfg.TokenTTL,
			ExchangeTimeout: cfg.OAuthExchangeTimeout,
		},
	)
	itemService := item.NewItemService(itemRepo, cfg.LowStockThreshold)

	// 5. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Metrics:           collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			FrontendURL: cfg.FrontendURL,
		},

		ItemService: itemService,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	return serveHTTP("API server", ":"+cfg.ServerPort, router)
}

// runWeb はダッシュボード（Webフロントエンド）モードで起動する。
// DBには接続せず、API_BASE_URLのAPIサーバーのみを利用する。
func runWeb(cfg *config.Config) error {
	client := webclient.NewClient(cfg.APIBaseURL, nil)

	server, err := web.NewServer(client, web.Config{
		CookieSecure: cfg.CookieSecure,
		Logger:       slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to build web server: %w", err)
	}

	slog.Info("web frontend configured",
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	return serveHTTP("web server", ":"+cfg.WebPort, server.Handler())
}

// serveHTTP はHTTPサーバーを起動し、シグナル受信でグレースフルシャットダウンする。
func serveHTTP(name, addr string, h http.Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("%s listen failed: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLトークンストアかつTOKEN_TTLが設定されている場合のみ、
// 期限切れトークンの削除ジョブをCLEANUP_INTERVAL間隔で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.TokenStore == config.TokenStoreRedis {
		slog.Info("worker has nothing to do: redis expires tokens natively")
		return nil
	}
	if cfg.TokenTTL <= 0 {
		slog.Info("worker has nothing to do: TOKEN_TTL is not set")
		return nil
	}

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. ジョブの初期化
	tokenRepo := repository.NewPostgresTokenRepo(db)
	job := cleanup.NewTokenPurgeJob(tokenRepo, slog.Default(), nil, cfg.TokenTTL)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("token_ttl", cfg.TokenTTL),
	)

	// 3. 削除ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// stepsが0の場合はすべての未適用マイグレーションを適用し、
// 正の場合はその数だけロールバックする。
func runMigrate(cfg *config.Config, steps int) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("rollback_steps", steps),
	)

	if steps > 0 {
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// 解析できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}

// ParseRollbackSteps は "migrate down N" 形式の引数からロールバック段数を取り出す。
// downが指定されていない場合は0を返す。
func ParseRollbackSteps(args []string) (int, error) {
	if len(args) < 2 || args[0] != string(CommandMigrate) {
		return 0, nil
	}
	switch args[1] {
	case "up":
		return 0, nil
	case "down":
	default:
		return 0, fmt.Errorf("unknown migrate direction: %q", args[1])
	}
	if len(args) < 3 {
		return 1, nil
	}
	steps, err := strconv.Atoi(args[2])
	if err != nil || steps <= 0 {
		return 0, fmt.Errorf("invalid rollback steps: %q", args[2])
	}
	return steps, nil
}
