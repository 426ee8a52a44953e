package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// EventQueue 为单个连接提供串行事件处理
// 解决问题：
// 1. 读循环不被持久化写入阻塞
// 2. 保证同一连接的事件按到达顺序写入日志
type EventQueue struct {
	connID       string
	eventHandler EventHandler
	eventChan    chan *queuedEvent
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       *slog.Logger

	// 统计信息
	mu              sync.Mutex
	totalEvents     int64
	processedEvents int64
	failedEvents    int64
	droppedEvents   int64
}

type queuedEvent struct {
	msg       *ClientMessage
	timestamp time.Time
}

const (
	// 队列容量：超过此值的事件将被拒绝（背压控制）
	defaultQueueCapacity = 100
	// 事件处理超时
	defaultEventTimeout = 10 * time.Second
	// 处理时间超过该值记录警告
	slowEventThreshold = time.Second
)

// QueueStats 是队列的统计快照。
type QueueStats struct {
	ConnID    string `json:"connId"`
	Total     int64  `json:"total"`
	Processed int64  `json:"processed"`
	Failed    int64  `json:"failed"`
	Dropped   int64  `json:"dropped"`
	Pending   int    `json:"pending"`
	Capacity  int    `json:"capacity"`
}

// NewEventQueue 创建事件队列并启动单协程处理器。capacity<=0 时使用默认容量。
func NewEventQueue(connID string, capacity int, handler EventHandler, logger *slog.Logger) *EventQueue {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())

	eq := &EventQueue{
		connID:       connID,
		eventHandler: handler,
		eventChan:    make(chan *queuedEvent, capacity),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger.With("component", "event_queue", "conn_id", connID),
	}

	eq.wg.Add(1)
	go eq.processLoop()

	return eq
}

// Enqueue 将事件加入队列（非阻塞）。队列满返回 ErrQueueFull，已关闭返回 ErrQueueClosed。
func (eq *EventQueue) Enqueue(msg *ClientMessage) error {
	select {
	case <-eq.ctx.Done():
		return ErrQueueClosed
	default:
	}

	event := &queuedEvent{
		msg:       msg,
		timestamp: time.Now(),
	}

	select {
	case eq.eventChan <- event:
		eq.mu.Lock()
		eq.totalEvents++
		eq.mu.Unlock()
		return nil
	default:
		eq.mu.Lock()
		eq.droppedEvents++
		eq.mu.Unlock()
		eq.logger.Warn("queue full, rejecting event", "type", msg.Type)
		return ErrQueueFull
	}
}

// processLoop 串行处理事件（单协程）
func (eq *EventQueue) processLoop() {
	defer eq.wg.Done()

	for {
		select {
		case <-eq.ctx.Done():
			return
		case event := <-eq.eventChan:
			eq.processEvent(event)
		}
	}
}

// processEvent 处理单个事件
func (eq *EventQueue) processEvent(event *queuedEvent) {
	startTime := time.Now()
	queueLatency := startTime.Sub(event.timestamp)

	ctx, cancel := context.WithTimeout(eq.ctx, defaultEventTimeout)
	defer cancel()

	err := eq.eventHandler(ctx, event.msg)
	processingTime := time.Since(startTime)

	eq.mu.Lock()
	eq.processedEvents++
	if err != nil {
		eq.failedEvents++
	}
	eq.mu.Unlock()

	if err != nil {
		eq.logger.Warn("event processing failed", "type", event.msg.Type, "error", err)
	}
	if processingTime > slowEventThreshold {
		eq.logger.Warn("slow event processing", "type", event.msg.Type,
			"processing_time", processingTime, "queue_latency", queueLatency)
	}
}

// Close 停止处理器并等待其退出。未处理的事件被丢弃。
func (eq *EventQueue) Close() error {
	eq.cancel()
	eq.wg.Wait()

	stats := eq.Stats()
	eq.logger.Info("event queue closed", "total", stats.Total, "processed", stats.Processed,
		"failed", stats.Failed, "dropped", stats.Dropped, "pending", stats.Pending)
	return nil
}

// Stats 获取队列统计信息
func (eq *EventQueue) Stats() QueueStats {
	eq.mu.Lock()
	defer eq.mu.Unlock()

	return QueueStats{
		ConnID:    eq.connID,
		Total:     eq.totalEvents,
		Processed: eq.processedEvents,
		Failed:    eq.failedEvents,
		Dropped:   eq.droppedEvents,
		Pending:   len(eq.eventChan),
		Capacity:  cap(eq.eventChan),
	}
}
