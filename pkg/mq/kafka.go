// Package mq 提供领域事件发布：Kafka 实现、空实现与内存实现
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"github.com/wyfcoding/tradingassistant/pkg/metrics"
)

// Event 领域事件信封
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// NewEvent 创建事件，Key 用作 Kafka 分区键
func NewEvent(eventType, key string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher 事件发布接口
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// ErrQueueFull 发送队列已满，事件被丢弃
var ErrQueueFull = errors.New("kafka publish queue is full")

const (
	defaultQueueSize    = 1024
	defaultWriteTimeout = 10 * time.Second
)

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Brokers []string
	// 单条消息写入超时（秒），包含重试
	WriteTimeout int
	// 写入失败时的最大尝试次数
	MaxAttempts int
	// 等待发送的事件上限
	QueueSize int
}

// KafkaProducer Kafka 生产者
// Publish 只负责入队，由后台协程写入 Kafka，请求路径不等待 Broker
type KafkaProducer struct {
	writer  *kafka.Writer
	timeout time.Duration
	queue   chan kafka.Message
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewProducer 创建 Kafka 生产者并启动发送协程
func NewProducer(cfg KafkaConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	timeout := time.Duration(cfg.WriteTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxAttempts,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           timeout,
	}

	kp := newProducer(writer, timeout, size)
	go kp.run()

	logger.Info(context.Background(), "Kafka producer created successfully", "brokers", cfg.Brokers, "queue_size", size)
	return kp, nil
}

func newProducer(writer *kafka.Writer, timeout time.Duration, size int) *KafkaProducer {
	return &KafkaProducer{
		writer:  writer,
		timeout: timeout,
		queue:   make(chan kafka.Message, size),
		done:    make(chan struct{}),
	}
}

// Publish 以 JSON 编码事件并入队，队列满时返回 ErrQueueFull
func (kp *KafkaProducer) Publish(_ context.Context, topic string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.closed {
		return io.ErrClosedPipe
	}
	select {
	case kp.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// run 逐条写入，每条消息有独立超时
func (kp *KafkaProducer) run() {
	defer close(kp.done)
	for msg := range kp.queue {
		ctx, cancel := context.WithTimeout(context.Background(), kp.timeout)
		err := kp.writer.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			logger.Error(ctx, "Failed to send Kafka message", "topic", msg.Topic, "type", eventType(msg), "error", err)
			continue
		}
		logger.Debug(ctx, "Kafka message sent", "topic", msg.Topic, "type", eventType(msg))
	}
}

func eventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

// Close 停止入队，等待队列中的事件发送完毕后关闭 writer
func (kp *KafkaProducer) Close() error {
	kp.mu.Lock()
	if kp.closed {
		kp.mu.Unlock()
		return nil
	}
	kp.closed = true
	close(kp.queue)
	kp.mu.Unlock()

	<-kp.done
	return kp.writer.Close()
}

// Emitter 向固定主题发布事件，发布失败只记录日志与指标，不影响调用方
// 计数的是交给 Publisher 的结果，Kafka 写入失败由生产者记录日志
type Emitter struct {
	publisher Publisher
	topic     string
	metrics   *metrics.Metrics
}

// NewEmitter 创建 Emitter，publisher 为 nil 时使用 NoopPublisher
func NewEmitter(publisher Publisher, topic string, m *metrics.Metrics) *Emitter {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Emitter{publisher: publisher, topic: topic, metrics: m}
}

// Emit 构造并发布事件
func (e *Emitter) Emit(ctx context.Context, eventType, key string, payload any) {
	if e == nil {
		return
	}
	err := e.publisher.Publish(ctx, e.topic, NewEvent(eventType, key, payload))
	if err != nil {
		logger.Warn(ctx, "Failed to publish domain event", "topic", e.topic, "type", eventType, "error", err)
	}
	e.metrics.DomainEvent(e.topic, err)
}

// NoopPublisher 丢弃所有事件
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NoopPublisher) Close() error                                 { return nil }

// Published 已发布事件记录
type Published struct {
	Topic string
	Event Event
}

// MemoryPublisher 在内存中记录事件
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Published
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(_ context.Context, topic string, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Published{Topic: topic, Event: event})
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

// Events 返回已记录事件的副本
func (p *MemoryPublisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.events))
	copy(out, p.events)
	return out
}

// Types 返回已记录事件的类型序列
func (p *MemoryPublisher) Types() []string {
	events := p.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Event.Type
	}
	return out
}
