package cache

import (
	"context"
	"fmt"
	"time"

	"eventify/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Connect builds a client and pings it once.
func Connect(ctx context.Context, addr, password string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
		PoolSize: 10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", addr, client.Options().DB))
	return client, nil
}
