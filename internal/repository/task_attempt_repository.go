package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// TaskAttemptRepository 使用 Redis 记录后台任务的失败次数。
type TaskAttemptRepository interface {
	// Incr 递增失败次数并返回递增后的值。
	Incr(ctx context.Context, taskKey string) (int64, error)
	Reset(ctx context.Context, taskKey string) error
}

type taskAttemptRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewTaskAttemptRepository 创建一个新的 TaskAttemptRepository，计数在 24 小时后过期。
func NewTaskAttemptRepository(redisClient *redis.Client) TaskAttemptRepository {
	return &taskAttemptRepository{redisClient: redisClient, ttl: 24 * time.Hour}
}

func attemptsKey(taskKey string) string {
	return "tasks:attempts:" + taskKey
}

func (r *taskAttemptRepository) Incr(ctx context.Context, taskKey string) (int64, error) {
	key := attemptsKey(taskKey)
	attempts, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = r.redisClient.Expire(ctx, key, r.ttl).Err()
	return attempts, nil
}

func (r *taskAttemptRepository) Reset(ctx context.Context, taskKey string) error {
	return r.redisClient.Del(ctx, attemptsKey(taskKey)).Err()
}
