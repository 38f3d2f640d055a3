// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheet-insights/internal/apiserver/auth"
	"sheet-insights/internal/apiserver/identity"
	"sheet-insights/internal/apiserver/server"
	"sheet-insights/internal/apiserver/sheet"
	"sheet-insights/internal/config"
	"sheet-insights/internal/shared/cache"
	cacheredis "sheet-insights/internal/shared/cache/redis"
	"sheet-insights/internal/shared/storage"
	"sheet-insights/internal/shared/storage/driver/postgres"
	"sheet-insights/internal/shared/storage/driver/sqlite"
	"sheet-insights/internal/shared/storage/mongostore"
	"sheet-insights/internal/shared/storage/repository"
	"sheet-insights/pkg/logging"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.IdentitySecret == "" {
		log.Fatal("IDENTITY_SECRET is required")
	}

	// 初始化持久化存储
	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()
	log.Printf("Connected to %s store", cfg.StoreDriver)

	// 初始化令牌吊销名单（未配置 Redis 时退化为空操作）
	var denylist cache.TokenDenylist = cache.NewNoOpDenylist()
	if cfg.RedisURL != "" {
		redisDenylist, err := cacheredis.NewDenylist(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		denylist = redisDenylist
		log.Println("Connected to Redis")
	}
	defer denylist.Close()

	// AI 摘要器（未配置 API key 时返回占位文案）
	var summarizer sheet.Summarizer = sheet.NoKeySummarizer{}
	if s := sheet.NewOpenAISummarizer(sheet.SummarizerOptions{
		APIKey:   cfg.OpenAIKey,
		Model:    cfg.InsightModel,
		Timeout:  cfg.InsightTimeout,
		MaxBytes: cfg.InsightMaxBytes,
		Logger:   logger,
	}); s != nil {
		summarizer = s
	} else {
		log.Println("OPENAI_API_KEY not set, insights disabled")
	}

	authCfg := auth.Config{JWTSecret: cfg.JWTSecret, TokenTTL: cfg.TokenTTL}

	h := server.NewHandler(server.Options{
		Store:      store,
		AuthConfig: authCfg,
		Denylist:   denylist,
		Verifier:   identity.NewJWTVerifier(cfg.IdentitySecret),
		Revoker:    identity.NoOpRevoker{},
		Summarizer: summarizer,
		CORSOrigin: cfg.CORSOrigin,
	})

	// 启动引导：没有活跃 superadmin 时按环境变量创建
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := h.AccountService().EnsureSuperadmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		cancel()
		log.Fatalf("Failed to bootstrap superadmin: %v", err)
	}
	cancel()

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // 摘要生成可能较慢
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}

// openStore 按配置选择持久化后端
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "mongo":
		return mongostore.NewStore(cfg.MongoURI, cfg.MongoDB)
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewStore(db, postgres.NewDialect())
	case "sqlite", "":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repository.NewStore(db, sqlite.NewDialect())
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
