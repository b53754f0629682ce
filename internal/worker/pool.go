// Package worker 提供进程内的任务队列，queue.driver=memory 时替代 Kafka。
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/tasks"
)

// ErrPoolClosed 表示 Pool 已停止接收任务。
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool 由固定数量的 goroutine 消费一个带缓冲的任务通道。
// 单个任务的失败或 panic 不会影响其他任务。
type Pool struct {
	executor *tasks.Executor
	queue    chan tasks.ScriptTask
	workers  int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(processor tasks.Processor, workers, queueSize, maxAttempts int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		executor: &tasks.Executor{
			Processor:   processor,
			Counter:     tasks.NewLocalCounter(),
			MaxAttempts: int64(maxAttempts),
		},
		queue:   make(chan tasks.ScriptTask, queueSize),
		workers: workers,
	}
}

// Start 启动 worker。ctx 取消后正在执行和仍在排队的任务都会以取消结束，
// 需要排空队列时应先调用 Stop 再取消 ctx。
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	log.Infof("进程内 worker pool 已启动, workers=%d", p.workers)
}

// Enqueue 投递任务。队列满时阻塞直到有空位或 ctx 结束。
func (p *Pool) Enqueue(ctx context.Context, ts ...tasks.ScriptTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	for _, t := range ts {
		select {
		case p.queue <- t:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Stop 停止接收新任务，等待队列中已有的任务在 Start 的 ctx 下处理完。
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
	log.Info("进程内 worker pool 已停止")
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for task := range p.queue {
		if err := p.run(ctx, task); err != nil {
			log.Errorf("[worker-%d] %v", id, err)
		}
	}
}

func (p *Pool) run(ctx context.Context, task tasks.ScriptTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Key(), r)
		}
	}()
	p.executor.Execute(ctx, task)
	return nil
}
