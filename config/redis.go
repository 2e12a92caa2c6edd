package config

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis carries lifecycle events across instances so every gateway can
// bridge them to its connected observers. Optional: when REDIS_URL is
// unset the fan-out stays in-process.
var Redis *redis.Client

func InitRedis() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		log.Println("REDIS_URL not set, real-time fan-out is process-local only")
		return
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("Warning: invalid REDIS_URL, fan-out is process-local only: %v", err)
		return
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: redis ping failed, fan-out is process-local only: %v", err)
		client.Close()
		return
	}

	Redis = client
	log.Println("Redis connected successfully")
}
