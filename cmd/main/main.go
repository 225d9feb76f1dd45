package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/verseflow/verseflow/src/cache"
	"github.com/verseflow/verseflow/src/chat"
	"github.com/verseflow/verseflow/src/config"
	"github.com/verseflow/verseflow/src/handlers"
	"github.com/verseflow/verseflow/src/intent"
	"github.com/verseflow/verseflow/src/models"
	"github.com/verseflow/verseflow/src/providers"
	"github.com/verseflow/verseflow/src/router"
	"github.com/verseflow/verseflow/src/session"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system environment variables")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	log.Info("config loaded", "providers", len(cfg.Providers))

	redisCache, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to initialize Redis", "err", err)
	}
	defer redisCache.Close()
	log.Info("redis connected", "address", cfg.Redis.Address)

	adapters := make([]models.ProviderAdapter, 0, len(cfg.Providers))
	for i := range cfg.Providers {
		adapter, err := providers.NewLangchainAdapter(&cfg.Providers[i])
		if err != nil {
			log.Fatal("failed to initialize provider", "provider", cfg.Providers[i].Name, "err", err)
		}
		adapters = append(adapters, adapter)
		log.Info("provider ready", "name", cfg.Providers[i].Name, "model", cfg.Providers[i].Model, "priority", i)
	}

	fallbackRouter := router.NewFallbackRouter(adapters, &cfg.Router)
	log.Info("fallback router initialized", "attempt_timeout", cfg.Router.AttemptTimeout)

	var semanticCache models.SemanticCacheStore
	if cfg.SemanticCache.Enabled {
		index, err := cache.NewQdrantIndex(&cfg.Qdrant)
		if err != nil {
			log.Warn("failed to initialize vector index, running without semantic cache", "err", err)
		} else {
			embedder := cache.NewOpenAIEmbedder(&cfg.Embedding)
			semanticCache = cache.NewSemanticCache(redisCache, index, embedder, &cfg.SemanticCache)
			defer semanticCache.Close()
			log.Info("semantic cache enabled", "threshold", cfg.SemanticCache.SimilarityThreshold)
		}
	} else {
		log.Info("semantic cache disabled")
	}

	intentProvider := adapters[0]
	if cfg.Intent.Provider != "" {
		intentProvider = fallbackRouter.Provider(cfg.Intent.Provider)
	}
	classifier := intent.NewClassifier(intentProvider, &cfg.Intent)
	log.Info("intent classifier initialized", "provider", intentProvider.Name())

	contexts := chat.NewContextStore(redisCache.GetClient(), cfg.Session.HistoryWindow, cfg.Session.ContextTTL)

	manager := session.NewManager(fallbackRouter, semanticCache, classifier, contexts, &cfg.Session)
	defer manager.CloseAll()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	streamHandler := handlers.NewStreamHandler(manager, cfg.Session.OutboundBuffer)
	healthHandler := handlers.NewHealthHandler(manager)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.HealthCheck)
		v1.GET("/stream/:connection_id", streamHandler.HandleStream)
		v1.POST("/stream/:connection_id/messages", streamHandler.HandleInbound)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays zero: SSE responses are long-lived.
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", "err", err)
		}
	}()

	log.Info("verseflow engine running", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "err", err)
	}

	log.Info("server exited")
}

func corsMiddleware() gin.HandlerFunc {
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string

	if allowedOriginsEnv != "" {
		allowedOrigins = strings.Split(allowedOriginsEnv, ",")
		for i := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(allowedOrigins[i])
		}
	} else {
		allowedOrigins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// Requests without an Origin header (curl, health checks) pass
		// through untouched.
		if origin == "" {
			c.Next()
			return
		}

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin {
				allowed = true
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		if !allowed {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
