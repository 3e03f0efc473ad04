package main

import (
	"log"

	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"github.com/parkwise/reservation-service/config"
	"github.com/parkwise/reservation-service/internal/catalog"
	"github.com/parkwise/reservation-service/internal/clock"
	"github.com/parkwise/reservation-service/internal/consumer"
	"github.com/parkwise/reservation-service/internal/handler"
	"github.com/parkwise/reservation-service/internal/middleware"
	"github.com/parkwise/reservation-service/internal/repository"
	"github.com/parkwise/reservation-service/internal/scheduler"
	"github.com/parkwise/reservation-service/internal/service"
	"github.com/parkwise/reservation-service/internal/store"
	"github.com/parkwise/reservation-service/pkg/database"
	"github.com/parkwise/reservation-service/pkg/rabbitmq"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	db := database.NewPostgresDB(cfg.DSN())

	// RabbitMQ consumer: sync spot read model from the catalog service
	mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ: %v", err)
	}
	defer mqConsumer.Close()

	msgs, err := mqConsumer.Consume()
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}

	spotConsumer := consumer.NewSpotConsumer(db)
	spotConsumer.Start(msgs)

	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to RabbitMQ publisher: %v", err)
	}
	defer publisher.Close()

	// Repositories and collaborators
	spotRepo := repository.NewSpotRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	cat := catalog.NewLocalCatalog(spotRepo, publisher)

	// Core: store, scheduler, state machine
	clk := clock.Real{}
	sched := scheduler.NewTimerScheduler(clk)
	svc := service.NewReservationService(
		store.NewReservationStore(),
		cat,
		sched,
		clk,
		historyRepo,
		publisher,
		service.Config{
			GracePeriod:       cfg.GracePeriod,
			DefaultHourlyRate: cfg.DefaultHourlyRate,
		},
	)
	sched.SetFireHandler(svc.HandleTimeout)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	// Echo
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler
	e.Use(echoMw.RequestLoggerWithConfig(echoMw.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echoMw.RequestLoggerValues) error {
			log.Printf("%s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "reservation-service"})
	})

	api := e.Group("/api/v1/reservations",
		middleware.Identity(cfg.JWTSecret),
		middleware.RateLimit(rdb, cfg.RateLimit, cfg.RateLimitWindow),
	)
	handler.NewReservationHandler(svc).RegisterRoutes(api)

	log.Printf("Reservation Service starting on :%s (grace period %s)", cfg.ServerPort, cfg.GracePeriod)
	e.Logger.Fatal(e.Start(":" + cfg.ServerPort))
}
