package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	_ "fitclass/docs"

	"fitclass/internal/config"
	"fitclass/internal/db"
	"fitclass/internal/email"
	"fitclass/internal/logger"
	"fitclass/internal/outbox"
	"fitclass/internal/schedule"
	"fitclass/internal/server"
)

// @title FitClass API
// @version 1.0
// @description API for trainer class booking: schedules, capacity-safe reservations, cancellation policy and wallet refunds.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	defer logger.Sync()
	logger.Info("Starting FitClass application")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	emailService := email.New(
		rdb,
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPass,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emailService.Start(ctx)

	outboxRepo := outbox.NewRepository(database)
	srv := server.New(database, cfg, emailService, outboxRepo)

	publisher := outbox.NewRedisPublisher(rdb)
	dispatcher := outbox.NewDispatcher(database, outboxRepo, publisher, emailService, cfg.OutboxInterval)
	go dispatcher.Start(ctx)
	defer dispatcher.Stop()

	sweeper := schedule.NewSweeper(database, schedule.NewRepository(database), outboxRepo, srv.NoShows(), cfg.SweepInterval)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
