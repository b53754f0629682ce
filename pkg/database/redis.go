package database

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"scribe-eye-go/internal/config"
	"scribe-eye-go/pkg/log"
)

// NewRedis 创建 Redis 客户端并 Ping 一次确认连接可用。
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	log.Info("Redis client connected successfully")
	return rdb, nil
}
