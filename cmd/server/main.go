package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adventuretrack/atsite/internal/api"
	"github.com/adventuretrack/atsite/internal/cache"
	"github.com/adventuretrack/atsite/internal/config"
	"github.com/adventuretrack/atsite/internal/db"
	"github.com/adventuretrack/atsite/internal/ingest"
	"github.com/adventuretrack/atsite/internal/location"
	"github.com/adventuretrack/atsite/internal/middleware"
	"github.com/adventuretrack/atsite/internal/observ"
	"github.com/adventuretrack/atsite/internal/repository"
	"github.com/adventuretrack/atsite/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	messageStore := postgres.NewMessageStore(pool)
	userStore := postgres.NewUserStore(pool)

	// Schema creation is idempotent, so every startup runs it.
	if err := messageStore.CreateSchema(context.Background()); err != nil {
		return err
	}
	if err := userStore.CreateSchema(context.Background()); err != nil {
		return err
	}

	// Compile-time check that the stores satisfy their contracts.
	var messageRepo repository.MessageRepository = messageStore
	var directory repository.UserDirectory = userStore

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		directory = cache.NewDirectory(redis.NewClient(opts), directory, 5*time.Minute, logger)
		logger.Info("auth cache enabled")
	}

	locationClient := location.NewClient(cfg.LocationURL)
	normalizer := ingest.New(cfg.MediaRoot, messageRepo, locationClient, ingest.HTTPFetcher(nil), logger)

	messageHandler := api.NewMessageHandler(messageRepo, logger)
	ingestHandler := api.NewIngestHandler(normalizer, logger)
	livetrackHandler := api.NewLivetrackHandler(directory, locationClient, logger)

	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Beacon endpoints authenticate through the livetrack24 protocol
	// itself (client.php), never through service tokens.
	srv.GET("/client.php", livetrackHandler.Client)
	srv.GET("/track.php", livetrackHandler.Track)

	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	v1.POST("/messages", messageHandler.Insert)
	v1.POST("/media", messageHandler.InsertMedia)
	v1.GET("/messages/latest", messageHandler.Latest)
	v1.GET("/messages/:id", messageHandler.Get)
	v1.GET("/users/:id/messages", messageHandler.ListByUser)
	v1.POST("/ingest", ingestHandler.Ingest)

	logger.Info("starting atsite",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("media_root", cfg.MediaRoot),
	)

	return srv.Run(":" + cfg.Port)
}
