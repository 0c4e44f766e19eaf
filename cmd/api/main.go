package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"authweb/internal/config"
	"authweb/internal/db"
	webhttp "authweb/internal/http"
	"authweb/internal/repository"
	"authweb/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir", zap.Error(err))
	}

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute

	sessionStore := service.NewMemorySessionStore()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, sessions stay in memory", zap.Error(err))
		} else {
			sessionStore = service.NewRedisSessionStore(redisClient)
		}
		cancel()
	}

	var sessions service.SessionManager
	switch cfg.SessionBackend {
	case "cookie":
		if cfg.SessionSecret == "" {
			logger.Fatal("session secret required for cookie backend")
		}
		sessions = service.NewCookieSessionManager(cfg.SessionSecret, sessionTTL, sessionStore)
	default:
		sessions = service.NewStoreSessionManager(sessionStore, sessionTTL)
	}

	hasher := service.NewPasswordHasher(cfg.HashAlgo)
	userRepo := repository.NewPgUserRepository(pool)
	authSvc := service.NewAuthService(logger, userRepo, hasher, sessions)

	authHandler := webhttp.NewAuthHandler(logger, authSvc, cfg.UploadDir, sessionTTL)
	pageHandler := webhttp.NewPageHandler(logger)
	router := webhttp.NewRouter(logger, authHandler, pageHandler, webhttp.RouterOptions{
		TemplatesGlob: "web/templates/*.html",
		StaticDir:     "web/static",
		UploadDir:     cfg.UploadDir,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.String("session_backend", cfg.SessionBackend),
		zap.String("hash_algo", cfg.HashAlgo),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
