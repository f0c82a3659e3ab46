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

	"giftbox-checkout/internal/cache"
	"giftbox-checkout/internal/client"
	"giftbox-checkout/internal/config"
	"giftbox-checkout/internal/handler"
	"giftbox-checkout/internal/notification"
	"giftbox-checkout/internal/repository"
	"giftbox-checkout/internal/retry"
	"giftbox-checkout/internal/server"
	"giftbox-checkout/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitMysqlClient(cfg.DatabaseURL)
	rdb := client.InitRedisClient(&cfg.Redis)
	stripeClient := client.NewStripeClient(&cfg.Stripe)

	cacheSvc := cache.NewService(
		cache.NewRedisKV(rdb),
		cfg.Cache.SnapshotTTL,
		cfg.Cache.PriceTTL,
		cfg.Cache.SessionTTL,
	)

	productRepo := repository.NewProductRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	eventRepo := repository.NewPaymentEventRepository(db)

	if err := productRepo.Seed(context.Background()); err != nil {
		log.Println("seed catalog:", err)
	}

	var publisher notification.PublisherInterface
	pub, err := notification.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		// confirmations are fire-and-forget, checkout runs without them
		log.Printf("rabbitmq unavailable, confirmations disabled: %v", err)
	} else {
		publisher = pub
		defer pub.Close()
	}

	retryPolicy := retry.Policy{
		MaxRetries:        cfg.Retry.MaxRetries,
		InitialDelay:      cfg.Retry.InitialDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}

	cartService := service.NewCartService(cartRepo, productRepo, cacheSvc)
	checkoutService := service.NewCheckoutService(
		cartRepo, productRepo, stripeClient, cacheSvc,
		retryPolicy,
		cfg.BaseURL+"/checkout/return",
		cfg.Checkout.Currency,
	)
	settlementService := service.NewSettlementService(
		orderRepo, eventRepo, cartRepo, productRepo, cacheSvc, publisher,
		cfg.Checkout.DeliveryCost,
		cfg.Checkout.Currency,
	)

	srv := server.NewServer(
		handler.NewCheckoutHandler(checkoutService),
		handler.NewWebhookHandler(stripeClient, settlementService),
		handler.NewCartHandler(cartService),
	)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
