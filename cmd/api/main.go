package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chachabrian/specialtrip-backend/internal/booking"
	"github.com/chachabrian/specialtrip-backend/internal/config"
	"github.com/chachabrian/specialtrip-backend/internal/database"
	"github.com/chachabrian/specialtrip-backend/internal/events"
	"github.com/chachabrian/specialtrip-backend/internal/handlers"
	"github.com/chachabrian/specialtrip-backend/internal/middleware"
	"github.com/chachabrian/specialtrip-backend/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Initialize Redis
	if err := services.InitRedis(); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}

	// Initialize Firebase (optional - will log warning if not configured)
	if err := services.InitFirebase(); err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Booking lifecycle event stream, enabled when brokers are configured
	var sink events.Sink = events.NopSink{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	// Wire the negotiation engine
	store := booking.NewGormStore(db)
	clock := booking.SystemClock()
	dispatcher := booking.NewDispatcher(store, services.NewFCMNotifier(), hub, logger)
	opts := booking.Options{
		Expiry:                 cfg.BookingExpiry,
		DeclineExtension:       cfg.OfferDeclineExtension,
		CompletionRadiusMeters: cfg.CompletionRadiusMeters,
		NearbyRadiusMeters:     cfg.NearbyRadiusMeters,
	}
	engine := booking.NewEngine(store, store, dispatcher, hub, sink, clock, logger, opts)
	ledger := booking.NewRatingLedger(store, sink, clock, logger)

	// Expiry reaper races driver responses via the same conditional updates
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	reaper := booking.NewReaper(store, hub, sink, clock, logger, cfg.ReaperInterval)
	go reaper.Run(ctx)

	// Initialize router
	r := gin.Default()

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(corsConfig))
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", handlers.Register(db))
			auth.POST("/login", handlers.Login(db))
		}

		// WebSocket connection
		api.GET("/ws", middleware.AuthMiddleware(), handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			bookings := protected.Group("/bookings")
			{
				bookings.POST("", handlers.CreateBooking(engine))
				bookings.GET("/active", handlers.GetActiveBooking(engine))
				bookings.GET("/nearby", handlers.GetNearbyBookings(engine))
				bookings.GET("/history", handlers.GetBookingHistory(engine))
				bookings.GET("/:id", handlers.GetBooking(engine))
				bookings.POST("/:id/respond", handlers.DriverRespond(engine))
				bookings.POST("/:id/offer", handlers.RespondToOffer(engine))
				bookings.POST("/:id/start", handlers.StartTrip(engine))
				bookings.POST("/:id/complete", handlers.CompleteTrip(engine))
				bookings.POST("/:id/cancel", handlers.CancelBooking(engine))
				bookings.POST("/:id/rate", handlers.RateTrip(ledger))
			}

			notifications := protected.Group("/notifications")
			{
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
				notifications.DELETE("/remove-token", handlers.RemoveFCMToken(db))
			}
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Leveler
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
