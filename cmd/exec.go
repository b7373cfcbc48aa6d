package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"travel-booking/config"
	"travel-booking/handlers"
	"travel-booking/internal/store"
	"travel-booking/monitoring"
	"travel-booking/services"
	"travel-booking/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub when gateway keys are configured
	var pn *pubnub.PubNub
	if cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	pbStore := store.NewPocketBaseStore(app)
	capacityService := services.NewCapacityService(redisClient, pbStore)
	bookingService := services.NewBookingService(pbStore, capacityService, redisClient, cfg)
	paymentService := services.NewPaymentService(pbStore, bookingService, redisClient, pn, cfg)
	statsService := services.NewStatsService(pbStore, cfg.StatsTopPackages, cfg.StatsRecentCancelled)
	completionService := services.NewCompletionService(pbStore, bookingService, cfg.CompletionSweepInterval)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(app, bookingService)
	paymentHandler := handlers.NewPaymentHandler(app, paymentService, bookingService)
	adminHandler := handlers.NewAdminHandler(app, statsService, bookingService, capacityService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Monitoring
	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	// Setup graceful shutdown
	go handleShutdown(cancel, completionService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := capacityService.WarmLedger(ctx); err != nil {
			log.Printf("Error warming capacity ledger: %v", err)
		}

		completionService.Start()

		// Booking endpoints
		e.Router.POST("/api/v1/bookings", bookingHandler.CreateBooking)
		e.Router.POST("/api/v1/bookings/{bookingId}/cancel", bookingHandler.CancelBooking)
		e.Router.GET("/api/v1/bookings", bookingHandler.GetBookingHistory)

		// Payment endpoints
		e.Router.POST("/api/v1/bookings/{bookingId}/payments", paymentHandler.StartPayment)
		e.Router.POST("/api/v1/payments/webhook", paymentHandler.Webhook)
		e.Router.GET("/api/v1/payments/{paymentId}/status", paymentHandler.CheckPaymentStatus)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/stats", adminHandler.GetDashboardStats)
		e.Router.POST("/api/v1/admin/bookings/transition", adminHandler.TransitionBooking)
		e.Router.GET("/api/v1/admin/packages/{packageId}/capacity", adminHandler.GetPackageCapacity)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, completionService *services.CompletionService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	completionService.Stop()
	cancel()
}
