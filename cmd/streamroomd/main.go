package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"streamroom/sdk/internal/config"
	"streamroom/sdk/internal/moderation"
	"streamroom/sdk/internal/models"
	"streamroom/sdk/internal/server"
	"streamroom/sdk/internal/storage"
	"streamroom/sdk/internal/transport"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.ChatRoom{},
		&models.EventRecord{},
		&models.ReactionRecord{},
		&models.ReportRecord{},
		&models.User{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting streamroom service...")

	cfg := config.Load()
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)
	backend := transport.NewRedisBackend(rdb, s)

	var notifier *moderation.Notifier
	if cfg.TelegramToken != "" {
		var err error
		notifier, err = moderation.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Fatalf("Failed to start moderation notifier: %v", err)
		}
	}

	hub := server.NewHub(rdb)
	go hub.Run()

	h := server.NewHandler(s, backend, hub, []byte(cfg.JWTSecret))
	h.Filters = moderation.NewFilterSet(cfg.FilterReasons...)
	h.Notifier = notifier
	h.BaseURL = cfg.PublicBaseURL

	r := gin.Default()
	h.Register(r)

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatal(srv.ListenAndServe())
}
