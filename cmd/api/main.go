package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wbenromdhane/tijara-backend/api/routes"
	cartsvc "github.com/wbenromdhane/tijara-backend/internal/cart"
	checkoutsvc "github.com/wbenromdhane/tijara-backend/internal/checkout"
	ordersvc "github.com/wbenromdhane/tijara-backend/internal/orders"
	paymentsvc "github.com/wbenromdhane/tijara-backend/internal/payments"
	"github.com/wbenromdhane/tijara-backend/internal/products"
	"github.com/wbenromdhane/tijara-backend/pkg/config"
	"github.com/wbenromdhane/tijara-backend/pkg/db"
	"github.com/wbenromdhane/tijara-backend/pkg/konnect"
	"github.com/wbenromdhane/tijara-backend/pkg/logger"
	"github.com/wbenromdhane/tijara-backend/pkg/metrics"
	"github.com/wbenromdhane/tijara-backend/pkg/migrate"
	"github.com/wbenromdhane/tijara-backend/pkg/outbox"
	"github.com/wbenromdhane/tijara-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	konnectClient, err := konnect.NewClient(
		cfg.Konnect.APIKey,
		cfg.Konnect.WalletID,
		konnect.WithBaseURL(cfg.Konnect.BaseURL),
		konnect.WithTimeout(cfg.Konnect.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create konnect client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	conn := dbClient.DB()
	productsRepo := products.NewRepository(conn)
	cartRepo := cartsvc.NewRepository(conn)
	ordersRepo := ordersvc.NewRepository(conn)
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)

	cartService, err := cartsvc.NewService(cartRepo, dbClient, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(
		dbClient,
		productsRepo,
		ordersRepo,
		cartRepo,
		publisher,
		settlementMetrics,
		cfg.Checkout.MaxItemsPerOrder,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(ordersRepo, productsRepo, dbClient, publisher)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsService, err := paymentsvc.NewService(konnectClient, ordersRepo, ordersService, redisClient, cfg.Konnect.WebhookURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Registry:   registry,
			Cart:       cartService,
			Checkout:   checkoutService,
			Orders:     ordersService,
			OrdersRepo: ordersRepo,
			Payments:   paymentsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
