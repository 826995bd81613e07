// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// キューバックエンドの種別。
const (
	QueueBackendMemory = "memory"
	QueueBackendRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// 生成設定
	GeneratorURL             string // 推論サーバーのベースURL
	GeneratorTimeoutMinutes  int    // 推論呼び出しのタイムアウト（0で無制限）
	OutputDir                string // 成果物の保存先ディレクトリ

	// ジョブ/キュー設定
	QueueBackend              string // ジョブ実行方式 (memory, redis)
	QueueRedisURL             string // Asynq用Redis接続URL
	JobMaxAgeHours            int    // ジョブレコードの保持期間（時間）
	JobCleanupIntervalMinutes int    // クリーンアップの実行間隔（分）

	// 認証設定（3つすべて設定された場合のみ有効）
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		GeneratorURL:            getEnv("GENERATOR_URL", "http://127.0.0.1:9010"),
		GeneratorTimeoutMinutes: getEnvAsInt("GENERATOR_TIMEOUT_MINUTES", 0),
		OutputDir:               getEnv("OUTPUT_DIR", filepath.Join("outputs", "api")),

		QueueBackend:              getEnv("QUEUE_BACKEND", QueueBackendMemory),
		QueueRedisURL:             getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		JobMaxAgeHours:            getEnvAsInt("JOB_MAX_AGE_HOURS", 24),
		JobCleanupIntervalMinutes: getEnvAsInt("JOB_CLEANUP_INTERVAL_MINUTES", 60),

		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
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
	switch c.QueueBackend {
	case QueueBackendMemory, QueueBackendRedis:
	default:
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q", QueueBackendMemory, QueueBackendRedis)
	}

	if c.QueueBackend == QueueBackendRedis && c.QueueRedisURL == "" {
		return fmt.Errorf("QUEUE_REDIS_URL is required when QUEUE_BACKEND=redis")
	}

	if c.GinMode == "release" {
		if c.GeneratorURL == "" {
			return fmt.Errorf("GENERATOR_URL is required in release mode")
		}
	}

	// 認証は全設定が揃っているか、すべて空かのどちらか
	set := 0
	for _, v := range []string{c.AppUsername, c.AppPasswordHash, c.SessionSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return fmt.Errorf("APP_USERNAME, APP_PASSWORD_HASH and SESSION_SECRET must be set together")
	}

	return nil
}

// AuthEnabled は認証が有効かどうかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != "" && c.AppPasswordHash != "" && c.SessionSecret != ""
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
