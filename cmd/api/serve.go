package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/yourusername/account-api/internal/account"
	"github.com/yourusername/account-api/internal/auth"
	"github.com/yourusername/account-api/internal/config"
	"github.com/yourusername/account-api/internal/logging"
)

const shutdownTimeout = 10 * time.Second

var autoMigrate bool

// NewServeCmd は API サーバーを起動するコマンドを作成します。
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending migrations before serving (postgres stores only)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := logging.Setup(serviceName, cfg.LogFormat, nil)
	slog.SetDefault(logger)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if autoMigrate && cfg.UsesPostgres() {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	d, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer d.Close(logger)

	router, err := newRouter(cfg, d, logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", srv.Addr, "mode", cfg.GinMode,
			"user_store", cfg.UserStore, "token_store", cfg.TokenStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter はミドルウェアとルートを設定した Gin エンジンを返します。
func newRouter(cfg *config.Config, d *deps, logger *slog.Logger) (*gin.Engine, error) {
	// gin.Default のロガーは使わず slog で出力する
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(logger))

	// 未設定ならクライアントの X-Forwarded-For を信用せず、接続元アドレスでログイン試行を数える
	if err := router.SetTrustedProxies(cfg.TrustedProxies()); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("TRUSTED_PROXIES", cfg.TrustedProxyAddrs).Wrap(err)
	}

	// CORSミドルウェアの設定（Cookie を送れるよう credentials を許可）
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handleHealth)
	if d.metrics != nil {
		router.GET("/metrics", d.metrics.Handler())
	}

	handler := account.NewHandler(account.Options{
		Users:        d.users,
		Tokens:       d.tokens,
		Throttle:     auth.NewThrottle(cfg.LoginMaxAttempts, cfg.LoginWindow(), cfg.LoginLock()),
		Purger:       d.purger,
		Metrics:      d.metrics,
		Logger:       logger,
		MaxAge:       cfg.SessionMaxAge(),
		SecureCookie: cfg.CookieSecure,
	})
	handler.Register(router.Group("/api"))

	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": serviceName,
		"version": version,
	})
}
