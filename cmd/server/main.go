package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/example/freshmart/internal/config"
	"github.com/example/freshmart/internal/database"
	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/routes"
	"github.com/example/freshmart/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var idem services.IdempotencyStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idem = services.NewRedisIdempotencyStore(client, cfg.PaymentDeadline)
	} else {
		log.Println("REDIS_ADDR not set, using in-process idempotency store")
		idem = services.NewMemoryIdempotencyStore()
	}

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 256)
	publisher.Start(ctx)

	resolver := services.NewStoreResolver(db)
	ledger := services.NewLedgerService(db)
	orders := services.NewOrderService(db, ledger, publisher)
	checkout := services.NewCheckoutService(resolver, services.NewGormOrderStore(db), ledger, idem, publisher)
	sweeper := services.NewExpirySweeper(db, orders, cfg.PaymentDeadline, cfg.ExpirySweepInterval)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName: "FreshMart Backend",
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, db, cfg, routes.Deps{
		Resolver: resolver,
		Ledger:   ledger,
		Checkout: checkout,
		Orders:   orders,
	})

	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		if err := app.Shutdown(); err != nil {
			log.Printf("fiber.Shutdown error: %v", err)
		}
	}()

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
