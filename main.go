package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"campushub/server/internal/bootstrap"
	"campushub/server/internal/chat"
	"campushub/server/internal/config"
	"campushub/server/internal/events"
	"campushub/server/internal/files"
	"campushub/server/internal/handlers"
	"campushub/server/internal/logger"
	"campushub/server/internal/metrics"
	"campushub/server/internal/middleware"
	"campushub/server/internal/routes"
	"campushub/server/internal/utils"
	ws "campushub/server/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	// Connect to database
	stores, err := bootstrap.Open(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		zl.Info("publishing message events", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer publisher.Close()

	limits := middleware.NewLimiters(nil)
	if cfg.RedisAddr != "" {
		storage, err := middleware.NewRedisStorage(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "campushub:ratelimit")
		if err != nil {
			zl.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer storage.Close()
		limits = middleware.NewLimiters(storage)
	}

	hub := ws.NewHub(stores.Members, zl)
	go hub.Run(ctx)

	svc := chat.NewService(chat.Deps{
		Members:        stores.Members,
		Messages:       stores.Messages,
		Users:          stores.Users,
		Blobs:          stores.Blobs,
		Catalog:        stores.Catalog,
		Publisher:      publisher,
		Notifier:       hub,
		MaxAttachments: cfg.MaxAttachments,
		PublishTimeout: cfg.KafkaTimeout,
		Log:            zl,
	})

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	h := handlers.New(handlers.Deps{
		Users:         stores.Users,
		Tokens:        tokens,
		Chat:          svc,
		Library:       files.NewLibrary(stores.Blobs, stores.Catalog, zl),
		Hub:           hub,
		PollInterval:  cfg.PollInterval,
		SecureCookies: !cfg.IsDevelopment(),
		Log:           zl,
	})

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ErrorHandler: handlers.ErrorHandler(zl),
		// Room for a full set of attachments plus the form fields
		BodyLimit: int(cfg.MaxUploadBytes)*cfg.MaxAttachments + 1024*1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger(zl))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
		ExposeHeaders:    handlers.ServerTimeHeader,
	}))

	// Setup routes
	routes.SetupRoutes(app, h, tokens, limits)

	go func() {
		<-ctx.Done()
		zl.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			zl.Warn("shutdown failed", zap.Error(err))
		}
	}()

	zl.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("blob_driver", cfg.BlobDriver))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}
