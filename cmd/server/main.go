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

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailtrack/internal/api"
	"github.com/ignite/mailtrack/internal/campaign"
	"github.com/ignite/mailtrack/internal/config"
	"github.com/ignite/mailtrack/internal/pkg/distlock"
	"github.com/ignite/mailtrack/internal/pkg/logger"
	"github.com/ignite/mailtrack/internal/registry"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logger.DEBUG)
	}

	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}
	log.Println("[Server] Connected to database")

	reg := registry.New(registry.NewStore(db))

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Printf("[Server] Warning: redis unavailable, link cache disabled: %v", err)
		} else {
			redisClient = client
			reg.SetLinkCache(registry.NewLinkCache(client, cfg.Redis.LinkTTL()))
			log.Printf("[Server] Link cache enabled (ttl=%s)", cfg.Redis.LinkTTL())
		}
	}

	renderer, err := campaign.NewRenderer(cfg.Campaign.TemplatePath)
	if err != nil {
		log.Fatalf("load template: %v", err)
	}

	var transport campaign.Transport
	switch cfg.Campaign.Transport {
	case "ses":
		transport = campaign.NewSESTransport(cfg.SES)
	default:
		transport = campaign.NewSMTPTransport(cfg.SMTP)
	}

	baseURL := cfg.Tracking.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	}

	dispatcher := campaign.NewDispatcher(reg, transport, renderer, baseURL, cfg.Campaign)

	handler, err := api.NewHandler(reg, dispatcher)
	if err != nil {
		log.Fatalf("init handler: %v", err)
	}
	handler.SetSendLockFactory(func() distlock.Lock {
		return distlock.New(redisClient, db, "campaign-send", 30*time.Minute)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Minute, // send-all blocks for the full campaign
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[Server] Listening on %s (transport=%s, base_url=%s)", addr, transport.Name(), baseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[Server] Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
