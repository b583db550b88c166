package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

func main() {
	logger := log.New(os.Stdout, "[storefront] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			logger.Fatalf("db migrate: %v", err)
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	sqlDB, err := db.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatalf("db open: %v", err)
	}
	defer sqlDB.Close()

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// the catalog cache falls through without redis; carts will fail until it is back
		logger.Printf("redis ping %s: %v", cfg.RedisAddr, err)
	}

	// --- Providers ---
	sharedHTTP := &http.Client{}
	paymentClient, err := clients.NewClient("payment-provider", cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentTimeout, sharedHTTP)
	if err != nil {
		logger.Fatalf("payment client: %v", err)
	}
	emailClient, err := clients.NewClient("email-provider", cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailTimeout, sharedHTTP)
	if err != nil {
		logger.Fatalf("email client: %v", err)
	}

	// --- AMQP ---
	var publisher checkout.EventPublisher
	if cfg.RabbitMQURL != "" {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatalf("rabbitmq: %v", err)
		}
		defer conn.Close()

		pub, err := events.NewPublisher(conn, events.NewSQLSequencer(sqlDB), "")
		if err != nil {
			logger.Fatalf("publisher: %v", err)
		}
		defer pub.Close()
		publisher = pub
	} else {
		logger.Printf("RABBITMQ_URL not set, order events are not published")
	}

	// --- Domain ---
	resolver := tenant.NewResolver(cfg.Shops, cfg.DefaultTenant, tenant.WithGatewayKey(cfg.GatewayKey))

	products := catalog.NewCachedRepository(catalog.NewPostgresRepository(pool), rdb, cfg.CatalogCacheTTL, logger)
	carts := cart.NewService(products, cart.NewRedisStore(rdb, cfg.CartTTL))
	orders := order.NewRepository(sqlDB)

	orchestrator := checkout.NewOrchestrator(checkout.Deps{
		Carts:         carts,
		Provider:      payment.NewHTTPProvider(paymentClient),
		Sessions:      checkout.NewSessionRepository(sqlDB),
		Orders:        orders,
		Numbers:       order.NewNumberGenerator(),
		Shops:         resolver,
		Notifier:      notify.NewDispatcher(notify.NewHTTPMailer(emailClient, cfg.EmailFromOrders, cfg.EmailFromContact), resolver, logger),
		Events:        publisher,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})

	// --- HTTP ---
	router := httpapi.NewRouter(httpapi.Deps{
		Logger:           logger,
		Resolver:         resolver,
		Catalog:          products,
		Carts:            carts,
		Checkout:         orchestrator,
		Orders:           orders,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on :%s (%d shops)", cfg.Port, len(cfg.Shops))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown requested")
	case err := <-errCh:
		logger.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
	logger.Printf("shutdown complete")
}
