package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mroshb/couple_journal/internal/config"
	"github.com/mroshb/couple_journal/internal/database"
	"github.com/mroshb/couple_journal/internal/handlers"
	"github.com/mroshb/couple_journal/internal/jobs"
	"github.com/mroshb/couple_journal/internal/middleware"
	"github.com/mroshb/couple_journal/internal/realtime"
	"github.com/mroshb/couple_journal/internal/repositories"
	"github.com/mroshb/couple_journal/internal/services"
	"github.com/mroshb/couple_journal/pkg/logger"
	"github.com/mroshb/couple_journal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	logger.Info("Starting couple journal server...")

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := newBus(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to start change bus", err)
	}
	defer bus.Close()

	clock := utils.SystemClock()
	store := repositories.NewStore(db)

	users := services.NewUserService(store, bus)
	couples := services.NewCoupleService(store, bus, clock)
	invitations := services.NewInvitationService(store, couples, bus, clock, cfg.GetInvitationTTL())
	sharing := services.NewSharingService(store, bus, clock)
	memories := services.NewMemoryService(store, bus, clock)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerUser, cfg.RateLimitPerUser*10, cfg.GetRateLimitWindow())
	go rateLimiter.Run(ctx)

	sweeper := jobs.NewExpirySweeper(invitations, clock, cfg.GetSweepInterval())
	go sweeper.Run(ctx)

	manager := handlers.NewHandlerManager(
		cfg,
		users,
		couples,
		invitations,
		sharing,
		memories,
		realtime.NewWatcher(db, bus),
		clock,
		rateLimiter,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           manager.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", "env", cfg.AppEnv, "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// newBus shares change notifications through Redis when it is configured,
// otherwise only within this process.
func newBus(ctx context.Context, cfg *config.Config) (realtime.Bus, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, change notifications stay in this process")
		return realtime.NewLocalBus(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	bus, err := realtime.NewRedisBus(ctx, client, "changes:"+cfg.CollectionPrefix)
	if err != nil {
		return nil, err
	}
	logger.Info("Change bus connected", "redis", cfg.RedisAddr)
	return bus, nil
}
