// Package eventlog 是界面调用方唯一的写入/查询入口：它把 session 与 timeline 组合起来，
// 负责补齐事件 ID、会话 ID 与时间戳，并把日志变化通知给订阅者。
package eventlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedlab/server/internal/model"

	"github.com/google/uuid"
)

// EventStore 是 Logger 依赖的日志存储。
type EventStore interface {
	Load(ctx context.Context) []model.Event
	Append(ctx context.Context, evt model.Event) []model.Event
	Clear(ctx context.Context) []model.Event
	List() []model.Event
}

// SessionIdentity 提供当前会话 ID。
type SessionIdentity interface {
	Get(ctx context.Context) string
}

// Logger 在应用启动时构造一次，通过依赖注入传给所有调用方。
type Logger struct {
	store    EventStore
	identity SessionIdentity
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger

	// mu 串行化所有日志变更，保证同一调用方的事件按调用顺序入日志。
	mu sync.Mutex

	subsMu sync.Mutex
	subs   map[int]chan []model.Event
	nextID int
}

type Option func(*Logger)

// WithClock 注入时钟，测试可以给出确定的时间戳。
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithIDGenerator 注入事件 ID 生成器。
func WithIDGenerator(gen func() string) Option {
	return func(l *Logger) { l.newID = gen }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// New 创建 Logger 并从持久化存储恢复日志。
func New(ctx context.Context, store EventStore, identity SessionIdentity, opts ...Option) *Logger {
	l := &Logger{
		store:    store,
		identity: identity,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
		subs:     make(map[int]chan []model.Event),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "eventlog")

	restored := store.Load(ctx)
	l.logger.Info("event log restored", "events", len(restored), "session_id", identity.Get(ctx))
	return l
}

// LogEvent 构造完整事件并追加到日志。
// 事件类型不在词表中时返回 ErrInvalidEventType，日志保持不变；合法输入永不失败。
func (l *Logger) LogEvent(ctx context.Context, payload model.LogEventPayload) (model.Event, error) {
	if !payload.EventType.Valid() {
		return model.Event{}, fmt.Errorf("log event: %w: %q", model.ErrInvalidEventType, payload.EventType)
	}

	l.mu.Lock()
	timestamp := payload.Timestamp
	if timestamp == "" {
		timestamp = model.FormatTimestamp(l.now())
	}
	evt := model.Event{
		ID:        l.newID(),
		SessionID: l.identity.Get(ctx),
		PostID:    payload.PostID,
		EventType: payload.EventType,
		Timestamp: timestamp,
		State:     payload.State.Clone(),
	}
	events := l.store.Append(ctx, evt)
	// 持锁发布，订阅者看到的快照顺序与日志顺序一致。
	l.publish(events)
	l.mu.Unlock()

	l.logger.Debug("event logged", "event_type", evt.EventType, "post_id", evt.PostID, "events", len(events))
	return evt, nil
}

// ClearEvents 清空日志与持久化镜像。会话 ID 不受影响。
func (l *Logger) ClearEvents(ctx context.Context) {
	l.mu.Lock()
	events := l.store.Clear(ctx)
	l.publish(events)
	l.mu.Unlock()

	l.logger.Info("event log cleared")
}

// Events 返回当前日志的只读副本（按插入顺序）。
func (l *Logger) Events() []model.Event {
	return l.store.List()
}

// SessionID 返回当前会话 ID。
func (l *Logger) SessionID(ctx context.Context) string {
	return l.identity.Get(ctx)
}

// Subscribe 订阅日志变化。每次变更后订阅者收到最新快照；
// 通道容量为 1 且只保留最新值，慢订阅者不会阻塞记录。返回的函数用于取消订阅。
func (l *Logger) Subscribe() (<-chan []model.Event, func()) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	id := l.nextID
	l.nextID++
	ch := make(chan []model.Event, 1)
	l.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.subsMu.Lock()
			defer l.subsMu.Unlock()
			delete(l.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (l *Logger) publish(events []model.Event) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()

	for _, ch := range l.subs {
		snapshot := model.CloneEvents(events)
		select {
		case ch <- snapshot:
		default:
			// 丢弃尚未被读取的旧快照，换成最新的。
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}
