package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settleup-backend/config"
	"settleup-backend/database"
	"settleup-backend/events"
	"settleup-backend/handlers"
	authmiddleware "settleup-backend/middleware"
	"settleup-backend/repository"
	"settleup-backend/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	if os.Getenv("APP_ENV") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	db, err := database.New(cfg.DatabaseURL, cfg.DBTransactions)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	publisher := newPublisher(cfg)
	notifier := events.NewNotifier(publisher, cfg.NotifyTimeout)

	groupRepo := repository.NewGroupRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)
	settlementRepo := repository.NewSettlementRepository(db)

	balanceService := services.NewBalanceService(expenseRepo, groupRepo)
	groupService := services.NewGroupService(groupRepo, expenseRepo)
	expenseService := services.NewExpenseService(expenseRepo, groupRepo, db)
	settlementService := services.NewSettlementService(settlementRepo, groupRepo, balanceService, db, notifier, cfg.SettlementEpsilon)
	paymentService := services.NewPaymentService(settlementRepo, db, notifier)

	authMiddleware := authmiddleware.NewAuthMiddleware(cfg.JWTSecret)

	h := handlers.NewHandlers(
		groupService,
		expenseService,
		balanceService,
		settlementService,
		paymentService,
	)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmiddleware.ZapLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(authmiddleware.SecurityHeaders)
	r.Use(authmiddleware.MaxBodySize(cfg.MaxBodySize))
	if cfg.Env == "production" {
		r.Use(authmiddleware.StrictTransportSecurity)
	}

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			logger.Warn("Health check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("DB UNAVAILABLE"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, 1*time.Minute))
		r.Use(authmiddleware.RequireJSON)

		h.RegisterRoutes(r)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.Bool("db_transactions", cfg.DBTransactions),
			zap.Bool("notifications", cfg.RedisURL != ""))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := notifier.Close(); err != nil {
		logger.Warn("Failed to close event publisher", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newPublisher returns a Redis publisher when REDIS_URL is set. Without it
// events are dropped.
func newPublisher(cfg *config.Config) events.Publisher {
	if cfg.RedisURL == "" {
		zap.L().Info("REDIS_URL not set, settlement notifications disabled")
		return events.NoopPublisher{}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		zap.L().Fatal("Invalid REDIS_URL", zap.Error(err))
	}
	return events.NewRedisPublisher(redis.NewClient(opts), cfg.NotifyTimeout)
}
