// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアの種類
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port      string // APIサーバーのポート番号
	GinMode   string // Ginの実行モード (debug, release, test)
	LogFormat string // ログ形式 (json, text)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// プロキシ設定
	TrustedProxyAddrs string // X-Forwarded-For を信頼するプロキシ（IP/CIDR、カンマ区切り。空なら信頼しない）

	// ストア設定
	UserStore   string // ユーザーストアの種類 (memory, postgres)
	TokenStore  string // トークンストアの種類 (memory, redis, postgres)
	DatabaseURL string // PostgreSQL接続URL
	RedisURL    string // トークンストア用Redis接続URL

	// ジョブ/キュー設定
	QueueRedisURL string // Asynq用Redis接続URL（空の場合は同期的にセッションを削除）

	// セッション設定
	SessionMaxAgeDays int  // Cookie とトークンの有効期限（日）
	CookieSecure      bool // Cookie の Secure 属性

	// パスワード設定
	BcryptCost int // bcrypt のコスト

	// ログイン試行制限
	LoginMaxAttempts   int // ロックまでの失敗回数（0 で無効）
	LoginWindowMinutes int // 失敗回数を数える期間（分）
	LoginLockMinutes   int // ロック時間（分）

	// メトリクス設定
	MetricsEnabled bool // /metrics を公開するか
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:      getEnv("PORT", "8080"),
		GinMode:   getEnv("GIN_MODE", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// プロキシ設定
		TrustedProxyAddrs: getEnv("TRUSTED_PROXIES", ""),

		// ストア設定
		UserStore:   strings.ToLower(getEnv("USER_STORE", StoreMemory)),
		TokenStore:  strings.ToLower(getEnv("TOKEN_STORE", StoreMemory)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		// ジョブ/キュー設定
		QueueRedisURL: getEnv("QUEUE_REDIS_URL", ""),

		// セッション設定
		SessionMaxAgeDays: getEnvAsInt("SESSION_MAX_AGE_DAYS", 15),
		CookieSecure:      getEnvAsBool("COOKIE_SECURE", false),

		// パスワード設定
		BcryptCost: getEnvAsInt("BCRYPT_COST", 10),

		// ログイン試行制限
		LoginMaxAttempts:   getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindowMinutes: getEnvAsInt("LOGIN_WINDOW_MINUTES", 15),
		LoginLockMinutes:   getEnvAsInt("LOGIN_LOCK_MINUTES", 10),

		// メトリクス設定
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// 本番モードでは Secure Cookie を強制する
	if config.GinMode == "release" {
		config.CookieSecure = true
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DatabaseURL は DATABASE_URL だけを読み込みます。マイグレーションなど、
// ストア設定全体の検証が不要な場面で使います。
func DatabaseURL() string {
	loadEnvFile()
	return os.Getenv("DATABASE_URL")
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.UserStore {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("USER_STORE must be one of memory, postgres: %q", c.UserStore)
	}

	switch c.TokenStore {
	case StoreMemory, StoreRedis, StorePostgres:
	default:
		return fmt.Errorf("TOKEN_STORE must be one of memory, redis, postgres: %q", c.TokenStore)
	}

	if c.UsesPostgres() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when a postgres store is selected")
	}
	if c.TokenStore == StoreRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when TOKEN_STORE=redis")
	}
	// sessions テーブルは users を参照するため、片方だけ postgres にはできない
	if c.TokenStore == StorePostgres && c.UserStore != StorePostgres {
		return fmt.Errorf("TOKEN_STORE=postgres requires USER_STORE=postgres")
	}

	if len(c.AllowedOrigins()) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must contain at least one origin")
	}

	if c.SessionMaxAgeDays <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE_DAYS must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31")
	}
	if c.LoginMaxAttempts < 0 {
		return fmt.Errorf("LOGIN_MAX_ATTEMPTS must not be negative")
	}

	// ローカル開発ではメモリストアで十分
	// 本番環境では永続化されたストアを要求する
	if c.GinMode == "release" {
		if c.UserStore == StoreMemory {
			return fmt.Errorf("USER_STORE=memory is not allowed in release mode")
		}
		if c.TokenStore == StoreMemory {
			return fmt.Errorf("TOKEN_STORE=memory is not allowed in release mode")
		}
	}

	return nil
}

// UsesPostgres はいずれかのストアが PostgreSQL を使うかを返します。
func (c *Config) UsesPostgres() bool {
	return c.UserStore == StorePostgres || c.TokenStore == StorePostgres
}

// SessionMaxAge はセッションの有効期間を返します。
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeDays) * 24 * time.Hour
}

// LoginWindow は失敗回数を数える期間を返します。
func (c *Config) LoginWindow() time.Duration {
	return time.Duration(c.LoginWindowMinutes) * time.Minute
}

// LoginLock はロック時間を返します。
func (c *Config) LoginLock() time.Duration {
	return time.Duration(c.LoginLockMinutes) * time.Minute
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// TrustedProxies は信頼するプロキシを配列で返します。未設定の場合は nil で、
// クライアントが送る X-Forwarded-For は無視されます。
func (c *Config) TrustedProxies() []string {
	return splitList(c.TrustedProxyAddrs)
}

func splitList(value string) []string {
	var items []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			items = append(items, v)
		}
	}
	return items
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
