package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuscredits/internal/access"
	"campuscredits/internal/account"
	"campuscredits/internal/approval"
	"campuscredits/internal/config"
	"campuscredits/internal/db"
	"campuscredits/internal/email"
	"campuscredits/internal/event"
	"campuscredits/internal/keylock"
	"campuscredits/internal/ledger"
	"campuscredits/internal/logger"
	"campuscredits/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// @title Campus Credits API
// @version 1.0
// @description Campus credits: events, approvals and the credit ledger.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting campus credits")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	tx := db.NewTransactor(database)
	locks := keylock.New()

	accountRepo := account.NewRepository(database)
	gate := access.NewGate(accountRepo)

	emailService := email.New(rdb, accountRepo, email.Settings{
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
		SMTPHost: cfg.SMTPHost,
		SMTPPort: cfg.SMTPPort,
		SMTPUser: cfg.SMTPUser,
		SMTPPass: cfg.SMTPPass,
	})

	ledgerService := ledger.NewService(ledger.NewRepository(database), tx, gate, locks)
	eventService := event.NewService(event.NewRepository(database), tx, gate, locks, ledgerService)
	approvalService := approval.NewService(approval.NewRepository(database), tx, gate, locks, ledgerService, eventService)
	accountService := account.NewService(accountRepo, gate, cfg.JWTSecret, cfg.AdminEmails)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go emailService.Start(ctx)

	srv := server.New(cfg, rdb, server.Handlers{
		Accounts: account.NewHandler(accountService),
		Ledger:   ledger.NewHandler(ledgerService, emailService),
		Entities: approval.NewHandler(approvalService, emailService),
		Events:   event.NewHandler(eventService, emailService),
		Health:   server.Health(database, rdb),
		Metrics:  server.Metrics(emailService),
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	cancel()

	logger.Info("Server stopped")
}
