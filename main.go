package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/logging"
	"marketplace/internal/repositories"
	"marketplace/internal/server"
	"marketplace/internal/services"
	"marketplace/internal/storage"
	"marketplace/pkg/rabbitmq"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// --- Configuration ---
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	ctx := context.Background()

	// --- Database ---
	db, err := database.Open(cfg.Database.Driver, cfg.DatabaseDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// --- Object storage ---
	store, err := newImageStore(ctx, cfg.S3)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image storage")
	}

	// --- Message broker (optional) ---
	publisher, closeMQ := connectBroker(cfg.RabbitMQURL)
	defer closeMQ()

	// --- Services ---
	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)

	authService := services.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	productService := services.NewProductService(productRepo, store, publisher, cfg.SignedURLTTL)

	app := server.New(server.Deps{
		AuthService:    authService,
		ProductService: productService,
		CORSOrigins:    cfg.CORSOrigins,
		RequestLog:     true,
	})

	// --- Start HTTP Server ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := app.Listen(cfg.Addr()); err != nil {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Info().Msg("shutting down server")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	log.Info().Msg("server gracefully stopped")
}

// newImageStore returns an S3-backed store, or an in-memory one when no
// bucket is configured.
func newImageStore(ctx context.Context, cfg config.S3Config) (storage.ImageStore, error) {
	if cfg.Bucket == "" {
		log.Warn().Msg("S3_BUCKET_NAME not set; images are kept in memory")
		return storage.NewMemoryStore(), nil
	}
	return storage.NewS3Store(ctx, storage.S3Config{
		Region:          cfg.Region,
		Bucket:          cfg.Bucket,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Endpoint:        cfg.Endpoint,
	})
}

// connectBroker connects to RabbitMQ when url is set and starts a consumer
// that logs product events. A broker that cannot be reached disables events
// instead of stopping the server. The returned func releases the connection.
func connectBroker(url string) (services.EventPublisher, func()) {
	noop := func() {}
	if url == "" {
		return nil, noop
	}

	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: url})
	if err != nil {
		log.Error().Err(err).Msg("RabbitMQ unavailable; product events disabled")
		return nil, noop
	}

	if err := mqClient.ConsumeProductEvents(logProductEvent); err != nil {
		log.Error().Err(err).Msg("failed to start RabbitMQ consumer")
	}

	return mqClient, func() {
		if err := mqClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing RabbitMQ client")
		}
	}
}

func logProductEvent(event rabbitmq.ProductEvent) error {
	log.Info().
		Str("event", event.Event).
		Uint("product_id", event.ProductID).
		Uint("user_id", event.UserID).
		Time("occurred_at", event.OccurredAt).
		Msg("product event")
	return nil
}
