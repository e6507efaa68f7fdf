package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/koryun2/ICAI-backend-app/api"
	_ "github.com/koryun2/ICAI-backend-app/docs"
	"github.com/koryun2/ICAI-backend-app/internal/config"
	"github.com/koryun2/ICAI-backend-app/internal/database"
	"github.com/koryun2/ICAI-backend-app/internal/engine"
	"github.com/koryun2/ICAI-backend-app/internal/identities"
	"github.com/koryun2/ICAI-backend-app/internal/interviews"
	"github.com/koryun2/ICAI-backend-app/internal/ratelimit"
	"github.com/koryun2/ICAI-backend-app/pkg/logger"
	"github.com/koryun2/ICAI-backend-app/pkg/metrics"
	"github.com/koryun2/ICAI-backend-app/pkg/tracing"
)

func main() {
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	createSuperuser := flag.String("create-superuser", "", "create a staff account as email:password and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Setup(context.Background())
		if err != nil {
			zapLogger.Fatal("Failed to set up tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdownTracing(context.Background()); err != nil {
				zapLogger.Warn("Tracing shutdown failed", zap.Error(err))
			}
		}()
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		zapLogger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}

	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	if *migrateOnly {
		zapLogger.Info("Migrations applied")
		return
	}

	identitiesSvc, err := identities.NewService(zapLogger, db, identities.Config{
		JWTSecret:       cfg.JWT.Secret,
		RefreshSecret:   cfg.JWT.RefreshSecret,
		AccessTokenTTL:  time.Duration(cfg.JWT.ExpirationHours) * time.Hour,
		RefreshTokenTTL: time.Duration(cfg.JWT.RefreshExpHours) * time.Hour,
	})
	if err != nil {
		zapLogger.Fatal("Failed to create identities service", zap.Error(err))
	}

	if *createSuperuser != "" {
		email, password, ok := strings.Cut(*createSuperuser, ":")
		if !ok || email == "" || password == "" {
			zapLogger.Fatal("Invalid -create-superuser value, expected email:password")
		}
		user, err := identitiesSvc.CreateSuperuser(context.Background(), email, password)
		if err != nil {
			zapLogger.Fatal("Failed to create superuser", zap.Error(err))
		}
		zapLogger.Info("Superuser created", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
		return
	}

	interviewEngine := engine.NewEngine(cfg.Engine, zapLogger)

	interviewsSvc, err := interviews.NewService(zapLogger, db, interviewEngine, cfg.Engine.DefaultQuestionCount, cfg.Engine.MaxGenerateCount)
	if err != nil {
		zapLogger.Fatal("Failed to create interviews service", zap.Error(err))
	}

	var authLimiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled && cfg.Redis.Address != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		authLimiter = ratelimit.NewLimiter(redisClient, zapLogger, cfg.RateLimit.AuthPerMinute, time.Minute)
	} else {
		zapLogger.Info("Auth rate limiting disabled")
	}

	// DB pool metrics every 30s
	poolTicker := time.NewTicker(30 * time.Second)
	defer poolTicker.Stop()
	go func() {
		for range poolTicker.C {
			if sqlDB, err := db.DB(); err == nil {
				stats := sqlDB.Stats()
				metrics.DBOpenConns.WithLabelValues("postgres").Set(float64(stats.OpenConnections))
				metrics.DBIdleConns.WithLabelValues("postgres").Set(float64(stats.Idle))
				metrics.DBInUseConns.WithLabelValues("postgres").Set(float64(stats.InUse))
			}
		}
	}()

	apiServer := api.NewServer(zapLogger, identitiesSvc, interviewsSvc, authLimiter)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zapLogger.Error("Forced shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
