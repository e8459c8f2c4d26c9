package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"streamroom/sdk/internal/config"
	"streamroom/sdk/internal/storage"
	"streamroom/sdk/internal/transport"
)

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	storageSvc := storage.NewStorageService(db, rdb)
	backend := transport.NewRedisBackend(rdb, storageSvc)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		fmt.Println("Commands: rooms | close <room_id> | purge <room_id> <message_id>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "rooms":
		roomIDs, err := storageSvc.GetActiveRoomIDs()
		if err != nil {
			log.Fatalf("failed to list rooms: %v", err)
		}
		for _, id := range roomIDs {
			fmt.Println(id)
		}
		fmt.Printf("%d active room(s)\n", len(roomIDs))

	case "close":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin close <room_id>")
			os.Exit(1)
		}
		if err := storageSvc.CloseRoom(os.Args[2]); err != nil {
			log.Fatalf("failed to close room: %v", err)
		}
		fmt.Printf("Room %s closed.\n", os.Args[2])

	case "purge":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin purge <room_id> <message_id>")
			os.Exit(1)
		}
		roomID, messageID := os.Args[2], os.Args[3]
		// emits a deleted event so connected sessions tombstone the message
		if _, err := backend.PublishDeleted(context.Background(), roomID, messageID); err != nil {
			log.Fatalf("failed to purge message: %v", err)
		}
		fmt.Printf("Message %s purged from room %s.\n", messageID, roomID)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
