// Command catalogue serves the collections catalogue over HTTP.
//
// Usage:
//
//	catalogue [-config file] [serve]
//	catalogue [-config file] migrate
//	catalogue [-config file] seed fixtures.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/catalogue/api"
	"github.com/Aidin1998/catalogue/common/apiutil"
	"github.com/Aidin1998/catalogue/internal/access"
	"github.com/Aidin1998/catalogue/internal/auth"
	"github.com/Aidin1998/catalogue/internal/config"
	"github.com/Aidin1998/catalogue/internal/data"
	"github.com/Aidin1998/catalogue/internal/database"
	"github.com/Aidin1998/catalogue/internal/presentation"
	"github.com/Aidin1998/catalogue/internal/session"
	"github.com/Aidin1998/catalogue/pkg/logger"
	"github.com/Aidin1998/catalogue/pkg/telemetry"
	"github.com/Aidin1998/catalogue/pkg/validation"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	configPath := flag.String("config", "", "configuration file (default: search config.yaml)")
	flag.Parse()

	// Bootstrap logger until the configuration is known
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	bootLogger, err := logger.NewLogger(logLevel, "json")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.Load(bootLogger, paths...)
	if err != nil {
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	zapLogger, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		bootLogger.Fatal("Failed to create logger", zap.Error(err))
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	command := flag.Arg(0)
	if command == "" {
		command = "serve"
	}

	switch command {
	case "migrate":
		if err := database.Migrate(ctx, db); err != nil {
			zapLogger.Fatal("Migration failed", zap.Error(err))
		}
		zapLogger.Info("Schema migrated")
	case "seed":
		if flag.NArg() < 2 {
			zapLogger.Fatal("Usage: catalogue seed <fixtures.yaml>")
		}
		if err := database.Migrate(ctx, db); err != nil {
			zapLogger.Fatal("Migration failed", zap.Error(err))
		}
		if err := database.SeedFile(ctx, db, zapLogger, flag.Arg(1)); err != nil {
			zapLogger.Fatal("Seeding failed", zap.Error(err))
		}
	case "serve":
		if err := serve(ctx, cfg, db, zapLogger); err != nil {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}

func serve(ctx context.Context, cfg *config.Config, db *gorm.DB, zapLogger *zap.Logger) error {
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
	}

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			zapLogger.Error("Failed to flush telemetry", zap.Error(err))
		}
	}()

	redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		zapLogger.Info("Session selections stored in Redis", zap.String("address", cfg.Redis.Address))
	} else {
		zapLogger.Info("Session selections stored in memory")
	}

	// Create services
	checker := access.NewChecker(zapLogger, db)
	validator := validation.NewValidator()
	authSvc := auth.NewService(zapLogger, db, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.ExpirationHours)*time.Hour, cfg.Auth.Issuer)
	services := api.Services{
		Auth:          authSvc,
		Data:          data.NewService(zapLogger, db, checker, validator, validation.NewSanitizer()),
		Presentations: presentation.NewService(zapLogger, db, checker, authSvc, validator),
		Selections:    session.NewStore(redisClient, cfg.Session.MaxAge),
	}

	apiServer, err := api.NewServer(zapLogger, cfg, db, redisClient, services)
	if err != nil {
		return err
	}

	// Schedule DB pool metrics collection every 30s
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if sqlDB, err := db.DB(); err == nil {
					apiutil.RecordPoolStats(cfg.Database.Driver, sqlDB)
				}
			}
		}
	}()

	httpServer := apiServer.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	zapLogger.Info("Server exited properly")
	return nil
}
