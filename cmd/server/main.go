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

	"github.com/loekTheDreamer/neoplay-backend/internal/agent"
	"github.com/loekTheDreamer/neoplay-backend/internal/config"
	"github.com/loekTheDreamer/neoplay-backend/internal/database"
	"github.com/loekTheDreamer/neoplay-backend/internal/handlers"
	"github.com/loekTheDreamer/neoplay-backend/internal/llm"
	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
	"github.com/loekTheDreamer/neoplay-backend/internal/router"
	"github.com/loekTheDreamer/neoplay-backend/internal/services"
	"github.com/loekTheDreamer/neoplay-backend/internal/session"
	"github.com/loekTheDreamer/neoplay-backend/internal/stream"
	"github.com/loekTheDreamer/neoplay-backend/internal/websocket"
	"github.com/loekTheDreamer/neoplay-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting neoPlay Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Initialize Object Storage ────
	storage, err := services.NewStorageService(
		cfg.StorageEndpoint,
		cfg.StorageAccessKey,
		cfg.StorageSecretKey,
		cfg.StorageBucket,
		cfg.StorageUseSSL,
	)
	if err != nil {
		log.Fatalf("✗ Object storage initialization failed: %v", err)
	}
	log.Println("✓ Object storage connected")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	gameRepo := repository.NewGameRepo(pool)
	gameFileRepo := repository.NewGameFileRepo(pool)
	threadRepo := repository.NewThreadRepo(pool)
	messageRepo := repository.NewMessageRepo(pool)

	// ──── Step 6: Initialize Model Vendor Clients ────
	streamers := make(map[agent.Vendor]llm.Streamer)
	if cfg.XAIAPIKey != "" {
		streamers[agent.VendorXAI] = llm.NewOpenAIClient("https://api.x.ai/v1", cfg.XAIAPIKey)
	}
	if cfg.AnthropicAPIKey != "" {
		streamers[agent.VendorAnthropic] = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
	}
	if cfg.DeepSeekAPIKey != "" {
		streamers[agent.VendorDeepSeek] = llm.NewOpenAIClient("https://api.deepseek.com/v1", cfg.DeepSeekAPIKey)
	}
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("✗ Gemini client initialization failed: %v", err)
		}
		defer geminiClient.Close()
		streamers[agent.VendorGemini] = geminiClient
	}
	agents := agent.NewRegistry(streamers)
	log.Printf("✓ Model vendor clients initialized (%d vendors)", len(streamers))

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	authService := services.NewAuthService(userRepo, redisClients.Sessions, jwtAuth)

	sessionStore := session.NewRedisStore(redisClients.Sessions)
	sessions := session.NewManager(sessionStore, cfg.SessionSecret, cfg.Env != "development")
	streamController := stream.NewController(sessions, agents, messageRepo)

	// ──── Initialize Handlers ────
	authHandler := handlers.NewAuthHandler(authService)
	streamHandler := handlers.NewStreamHandler(streamController)
	gameHandler := handlers.NewGameHandler(gameRepo, gameFileRepo, threadRepo, storage, redisClients.PubSub)
	threadHandler := handlers.NewThreadHandler(threadRepo, messageRepo, gameRepo)
	publishHandler := handlers.NewPublishHandler(gameRepo, redisClients.Queue)

	// ──── Step 7: Start Publish Worker Pool ────
	workerPool := worker.NewPool(
		redisClients.Queue,
		redisClients.PubSub,
		gameRepo,
		gameFileRepo,
		storage,
		cfg.PublishWorkers,
	)
	workerPool.Start()
	log.Printf("✓ Publish worker pool started (%d goroutines)", cfg.PublishWorkers)

	// ──── Step 8: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret, cfg.FrontendURL)
	log.Println("✓ WebSocket hub started")

	// ──── Step 9: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		authHandler,
		streamHandler,
		gameHandler,
		threadHandler,
		publishHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE responses stay open as long as the model
		// streams.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ neoPlay Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
