package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"checkout-core/internal/client"
	"checkout-core/internal/config"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"
	"checkout-core/internal/scheduler"
	"checkout-core/internal/server"
	"checkout-core/internal/service"
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

	db, err := client.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	gatewayTimeout := time.Duration(cfg.Gateway.TimeoutSeconds) * time.Second

	registry := client.NewRegistry()
	registry.Register("paypal", client.NewPaypalGateway(&cfg.Paypal, gatewayTimeout))
	registry.Register("braintree", client.NewBraintreeGateway(&cfg.Braintree))

	shippingRate, err := decimal.NewFromString(cfg.Shipping.FlatRate)
	if err != nil {
		log.Fatalf("parse shipping flat rate %q: %v", cfg.Shipping.FlatRate, err)
	}
	shipping := model.NewMoney(shippingRate, cfg.Shipping.Currency)

	productRepo := repository.NewProductRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	postponementRepo := repository.NewPostponementRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	couponService := service.NewCouponService(couponRepo)
	discountResolver := service.NewDiscountResolver(membershipRepo)
	pricingEngine := service.NewPricingEngine(discountResolver, couponService, productRepo)
	paymentService := service.NewPaymentService(
		db, registry, gatewayTimeout,
		paymentRepo, orderRepo, subscriptionRepo, webhookEventRepo,
	)
	checkoutService := service.NewCheckoutService(
		db, pricingEngine, couponService, paymentService, shipping,
		orderRepo, paymentRepo, subscriptionRepo,
		repository.NewAddressRepository(db),
	)
	subscriptionService := service.NewSubscriptionService(
		db, subscriptionRepo, postponementRepo, orderRepo,
	)

	sched := scheduler.New(subscriptionService)
	if err := sched.Start(cfg.Billing.ExpiryCron); err != nil {
		log.Fatalf("start billing sweep: %v", err)
	}

	srv := server.NewServer(
		cfg.Auth.JWTSecret,
		checkoutService,
		paymentService,
		subscriptionService,
		couponService,
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

	sched.Stop()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
