// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"scribe-eye-go/internal/config"
	"scribe-eye-go/pkg/log"
	"scribe-eye-go/pkg/tasks"
)

// Producer 把剧本任务写入 Kafka，以 ScriptID 作为消息键，同一剧本的任务落在同一分区。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg.Brokers)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// Enqueue 发送任务到 Kafka。
func (p *Producer) Enqueue(ctx context.Context, ts ...tasks.ScriptTask) error {
	msgs := make([]kafka.Message, 0, len(ts))
	for _, t := range ts {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(t.ScriptID), Value: b})
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// messageReader 是 Consumer 用到的 kafka.Reader 方法子集。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ErrAbandoned 表示一条消息既没有处理完也没有提交。
// 提交同一分区更靠后的 offset 会隐式提交它，所以 Run 遇到它会立即返回，
// 重新加入消费组后该消息从最后一次提交的 offset 处重新投递。
var ErrAbandoned = errors.New("kafka: message abandoned without commit")

// Consumer 逐条消费任务，按执行结果决定是否提交 offset。
type Consumer struct {
	reader   messageReader
	executor *tasks.Executor
	topic    string
}

// NewConsumer 创建消费者。失败计数通过 counter 记录，达到 cfg.MaxAttempts 后提交 offset 终止重试。
func NewConsumer(cfg config.KafkaConfig, processor tasks.Processor, counter tasks.AttemptCounter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader: r,
		executor: &tasks.Executor{
			Processor:   processor,
			Counter:     counter,
			MaxAttempts: int64(cfg.MaxAttempts),
		},
		topic: cfg.Topic,
	}
}

// Run 持续消费直到 ctx 被取消，或某条消息被放弃时返回 ErrAbandoned。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return nil
			}
			log.Error("从 Kafka 读取消息失败", err)
			return err
		}
		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return nil
			}
			log.Warnf("放弃消息 partition %d offset %d, 停止拉取等待重新投递", m.Partition, m.Offset)
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	log.Debugf("收到 Kafka 消息: partition %d offset %d", m.Partition, m.Offset)

	var task tasks.ScriptTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(m)
		return nil
	}

	if c.executor.Execute(ctx, task) == tasks.Abandoned {
		return ErrAbandoned
	}
	c.commit(m)
	return nil
}

func (c *Consumer) commit(m kafka.Message) {
	// 使用独立的 ctx，确保关闭过程中已完成的消息仍能提交
	if err := c.reader.CommitMessages(context.Background(), m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

// Supervise 反复运行 newConsumer 创建的消费者，直到 ctx 被取消。
// 消费者异常返回（包括 ErrAbandoned）后等待 restartDelay 再创建新的消费者。
func Supervise(ctx context.Context, newConsumer func() *Consumer, restartDelay time.Duration) {
	for {
		err := newConsumer().Run(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Errorf("Kafka 消费者退出, %s 后重启: %v", restartDelay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartDelay):
		}
	}
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
