package tasks

import (
	"context"
	"sync"
	"time"

	apperrors "scribe-eye-go/pkg/errors"
	"scribe-eye-go/pkg/log"
)

// AttemptCounter 记录任务的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, taskKey string) (int64, error)
	Reset(ctx context.Context, taskKey string) error
}

// Outcome 是一次 Execute 的结果，决定消费者是否确认消息。
type Outcome int

const (
	// Done 任务成功。
	Done Outcome = iota
	// Dropped 任务失败且不再重试：错误不可重试或已达到最大次数。
	Dropped
	// Abandoned 任务未完成也未放弃，例如 ctx 被取消或计数器不可用，消息应保留以便重新投递。
	Abandoned
)

// Backoff 返回第 attempt 次失败后的等待时间。
type Backoff func(attempt int64) time.Duration

// DefaultBackoff 按 1s、2s、4s... 递增，上限 30s。
func DefaultBackoff(attempt int64) time.Duration {
	d := time.Second << uint(attempt-1)
	if d <= 0 || d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// Executor 以统一的重试策略执行任务：可重试错误最多尝试 MaxAttempts 次，其余错误直接放弃。
type Executor struct {
	Processor   Processor
	Counter     AttemptCounter
	MaxAttempts int64
	Backoff     Backoff
}

func (e *Executor) Execute(ctx context.Context, task ScriptTask) Outcome {
	logger := log.With("task", task.Key())
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := e.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}

	for {
		err := e.Processor.Process(ctx, task)
		if err == nil {
			_ = e.Counter.Reset(ctx, task.Key())
			logger.Infof("任务处理成功")
			return Done
		}
		if ctx.Err() != nil {
			logger.Warnf("任务被取消: %v", err)
			return Abandoned
		}
		if !apperrors.Retryable(err) {
			logger.Errorf("任务失败且不可重试: %v", err)
			_ = e.Counter.Reset(ctx, task.Key())
			return Dropped
		}

		attempts, incErr := e.Counter.Incr(ctx, task.Key())
		if incErr != nil {
			// 计数器异常时保守处理，保留消息
			logger.Errorf("记录失败次数出错: %v, 原始错误: %v", incErr, err)
			return Abandoned
		}
		if attempts >= maxAttempts {
			logger.Errorf("任务多次失败(>=%d)，放弃重试: %v", maxAttempts, err)
			_ = e.Counter.Reset(ctx, task.Key())
			return Dropped
		}
		wait := backoff(attempts)
		logger.Warnf("任务第 %d 次失败, %s 后重试: %v", attempts, wait, err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Abandoned
		case <-timer.C:
		}
	}
}

// LocalCounter 是进程内的 AttemptCounter。
type LocalCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewLocalCounter() *LocalCounter {
	return &LocalCounter{counts: make(map[string]int64)}
}

func (c *LocalCounter) Incr(_ context.Context, taskKey string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[taskKey]++
	return c.counts[taskKey], nil
}

func (c *LocalCounter) Reset(_ context.Context, taskKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, taskKey)
	return nil
}
