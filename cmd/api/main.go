package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pravha/api/internal/config"
	"pravha/api/internal/model"
	"pravha/api/internal/server"
)

func main() {
	log.Println("[API] Starting Pravha Coordination API...")

	// Load .env if present; real env vars win.
	if err := godotenv.Load(); err == nil {
		log.Println("[API] Loaded .env")
	}

	cfg := config.Load()

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("[API] Failed to connect to database: %v", err)
	}
	log.Println("[API] Connected to database")

	if err := autoMigrate(db); err != nil {
		log.Fatalf("[API] Failed to migrate database: %v", err)
	}
	log.Println("[API] Database migrated")

	// Connect to Redis. The core keeps working without it (no dashboard cache,
	// no rate limiting), so an outage only degrades.
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
		DB:   0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("[API] Redis unavailable, continuing without cache: %v", err)
		redisClient = nil
	} else {
		log.Println("[API] Connected to Redis")
		defer redisClient.Close()
	}

	// Connect to NATS. Without it events stay local and the live feed is
	// silent, but the HTTP surface keeps serving.
	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Printf("[API] NATS unavailable, continuing without event feed: %v", err)
		natsConn = nil
	} else {
		log.Println("[API] Connected to NATS")
		defer natsConn.Close()
	}

	srv := server.NewServer(cfg, db, redisClient, natsConn)
	srv.Setup()

	if err := srv.Start(); err != nil {
		log.Fatalf("[API] Failed to start services: %v", err)
	}
	log.Println("[API] Coordination services started")

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	go func() {
		if err := srv.Run(addr); err != nil {
			log.Fatalf("[API] Failed to start server: %v", err)
		}
	}()

	log.Printf("[API] Server ready on %s", addr)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[API] Shutting down...")

	srv.Shutdown()
	log.Println("[API] Server stopped")
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Shelter{},
		&model.SOSRequest{},
		&model.Alert{},
	)
}
