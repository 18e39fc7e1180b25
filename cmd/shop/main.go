package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/go-pet-project/shop/internal/config"
	"github.com/sakashimaa/go-pet-project/shop/internal/db"
	"github.com/sakashimaa/go-pet-project/shop/internal/kafka"
	"github.com/sakashimaa/go-pet-project/shop/internal/metrics"
	"github.com/sakashimaa/go-pet-project/shop/internal/outbox"
	"github.com/sakashimaa/go-pet-project/shop/internal/repository"
	"github.com/sakashimaa/go-pet-project/shop/internal/service"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http"
	"github.com/sakashimaa/go-pet-project/shop/internal/transport/http/handler"
	shopKafka "github.com/sakashimaa/go-pet-project/shop/internal/transport/kafka"
	"github.com/sakashimaa/go-pet-project/shop/internal/utils"
	"github.com/sakashimaa/go-pet-project/shop/internal/worker"
	"go.uber.org/zap"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply migrations before serving")
	migrationsDir := flag.String("migrations", "./migrations", "migrations directory")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := utils.InitTracer(ctx, utils.TracerConfig{
		ServiceName: "shop-service",
		Env:         cfg.Env,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatalf("Error init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: cfg.LogLevel,
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if *migrate {
		if err := db.Migrate(*migrationsDir, cfg.Postgres.URL); err != nil {
			logger.Fatal("Error applying migrations", zap.Error(err))
		}
		logger.Info("Migrations applied")
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("Error creating new postgres DB", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("Error creating kafka producer", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	productRepository := repository.NewProductRepository(pool, logger)
	cartRepository := repository.NewCartRepository(logger)
	addressRepository := repository.NewAddressRepository(pool, logger)
	orderRepository := repository.NewOrderRepository(pool, logger)
	outboxRepository := outbox.NewRepository()

	cartService := service.NewCartService(pool, cartRepository, productRepository, outboxRepository, logger, m)
	orderService := service.NewOrderService(
		pool,
		cartRepository,
		productRepository,
		addressRepository,
		orderRepository,
		outboxRepository,
		logger,
		m,
	)
	addressService := service.NewAddressService(addressRepository, logger)
	productService := service.NewCachedProductService(
		service.NewProductService(pool, productRepository, outboxRepository, logger),
		rdb,
		cfg.Redis.CacheTTL,
		logger,
	)

	outboxProcessor := outbox.NewProcessor(
		pool,
		outboxRepository,
		kafkaProducer,
		logger,
		m,
		cfg.Outbox.BatchSize,
		cfg.Outbox.Interval,
	)
	cartReaper := worker.NewCartReaper(
		pool,
		cartRepository,
		productRepository,
		outboxRepository,
		logger,
		m,
		cfg.Cart.TTL,
		cfg.Cart.ReapInterval,
		cfg.Cart.ReapBatch,
	)
	consumer := shopKafka.NewConsumer(productService, logger)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		outboxProcessor.Start(ctx)
	}()

	go func() {
		defer wg.Done()
		cartReaper.Start(ctx)
	}()

	go func() {
		defer wg.Done()
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID); err != nil {
			logger.Error("Kafka consumer stopped", zap.Error(err))
		}
	}()

	app := fiber.New()

	app.Use(otelfiber.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &http.Handlers{
		Cart:    handler.NewCartHandler(cartService, logger, cfg.HTTP.Timeout),
		Order:   handler.NewOrderHandler(orderService, logger, cfg.HTTP.Timeout),
		Address: handler.NewAddressHandler(addressService, logger, cfg.HTTP.Timeout),
		Product: handler.NewProductHandler(productService, logger, cfg.HTTP.Timeout),
	}

	http.RegisterRoutes(app, handlers, cfg.Auth.AccessSecret, registry)

	go func() {
		logger.Info("Shop service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("Error listening HTTP", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", zap.Error(err))
	} else {
		logger.Info("Stopped HTTP server successfully")
	}

	wg.Wait()

	if err := kafkaProducer.Close(); err != nil {
		logger.Error("Error closing kafka producer", zap.Error(err))
	}

	if err := rdb.Close(); err != nil {
		logger.Error("Error closing redis client", zap.Error(err))
	}

	pool.Close()
	logger.Info("Closed db pool successfully")

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error stopping telemetry", zap.Error(err))
	} else {
		logger.Info("Telemetry closed correctly")
	}
}
