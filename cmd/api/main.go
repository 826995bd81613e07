// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/mesh-forge/internal/asset"
	"github.com/yourusername/mesh-forge/internal/auth"
	"github.com/yourusername/mesh-forge/internal/config"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// セッションストアは認証が有効な場合のみ設定する
	if cfg.AuthEnabled() {
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   auth.SessionMaxAgeSeconds(),
			HttpOnly: true,
			Secure:   cfg.GinMode == gin.ReleaseMode,
			SameSite: http.SameSiteStrictMode,
		})
		router.Use(sessions.Sessions(auth.SessionCookieName, store))
	}

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token",
	}
	corsConfig.ExposeHeaders = []string{"X-CSRF-Token"}
	router.Use(cors.New(corsConfig))

	// ジョブストア・パイプライン・スケジューラーの配線
	app, err := setupApplication(cfg, log.Default())
	if err != nil {
		log.Fatalf("Failed to set up application: %v", err)
	}
	app.start(context.Background())

	// ルーティングの設定
	setupRoutes(router, cfg, app)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s, queue: %s)", addr, cfg.GinMode, cfg.QueueBackend)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "mesh-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes は API グループと認証周りの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, app *application) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	api := router.Group("/api")

	if cfg.AuthEnabled() {
		authManager := auth.NewManager(cfg)

		authRoutes := api.Group("/auth")
		{
			// ログイン時はセッション未生成なので CSRF 検証は不要
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout",
				authManager.RequireLogin(),
				authManager.VerifyCSRF(),
				authManager.Logout,
			)
		}

		api.Use(authManager.RequireLogin(), authManager.VerifyCSRF())
	}

	api.POST("/generate", asset.GenerateHandler(app.store, app.scheduler))
	api.GET("/jobs/:id", asset.StatusHandler(app.store))
	api.GET("/jobs/:id/download", asset.DownloadHandler(app.store, app.artifacts))
	api.DELETE("/jobs/:id", asset.DeleteHandler(app.store, app.artifacts))
	api.GET("/queue/status", asset.QueueStatusHandler(app.store))
}
