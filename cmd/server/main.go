package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/motorclub/mailer/internal/api"
	"github.com/motorclub/mailer/internal/config"
	"github.com/motorclub/mailer/internal/mailer"
	"github.com/motorclub/mailer/internal/pkg/distlock"
	"github.com/motorclub/mailer/internal/render"
	"github.com/motorclub/mailer/internal/repository/postgres"
	"github.com/motorclub/mailer/internal/service/campaign"
)

func main() {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	transport, err := newTransport(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize mail transport: %v", err)
	}

	svc := campaign.NewService(
		postgres.NewCampaignRepo(db),
		postgres.NewSendRepo(db),
		postgres.NewSubscriberRepo(db),
		transport,
		render.New(),
		render.NewUnsubscribeSigner(cfg.Delivery.SigningKey, cfg.Server.BaseURL),
		cfg.Delivery.PacingDelay(),
	)
	dispatcher := campaign.NewDispatcher(svc, func(campaignID string) distlock.Lock {
		return distlock.New(redisClient, db, "dispatch:"+campaignID, cfg.Delivery.LockTTL())
	})

	handlers := api.NewHandlers(svc, dispatcher)
	router := api.SetupRoutes(handlers, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous dispatch can run long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newRedisClient returns nil when Redis is not configured; the dispatch lock
// then falls back to PostgreSQL advisory locks.
func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis unavailable (%v), using PG advisory locks", err)
		client.Close()
		return nil
	}
	return client
}

func newTransport(ctx context.Context, cfg *config.Config) (mailer.Mailer, error) {
	switch cfg.Delivery.Provider {
	case "sparkpost":
		return mailer.NewSparkPostMailer(cfg.SparkPost, cfg.Delivery), nil
	case "ses":
		return mailer.NewSESMailer(ctx, cfg.SES, cfg.Delivery)
	default:
		return nil, fmt.Errorf("unknown delivery provider %q", cfg.Delivery.Provider)
	}
}
