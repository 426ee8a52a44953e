package timeline

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"feedlab/server/internal/model"
	"feedlab/server/internal/storage"
)

// Key 是事件日志在持久化存储中的 key。
const Key = "xhs-event-log"

// Store 是有序、只追加的事件日志，每次变更都同步整体重写持久化镜像。
// 约定：Store 独占 Key 的写入；多个进程共享同一存储时不做协调（后写覆盖）。
type Store struct {
	mu         sync.RWMutex
	events     []model.Event
	capability storage.Capability
	logger     *slog.Logger
}

func NewStore(capability storage.Capability, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		capability: capability,
		logger:     logger.With("component", "timeline"),
	}
}

// Load 从持久化存储恢复日志并替换内存状态。
// 不存在返回空日志；内容无法解析为事件数组时记录诊断并返回空日志，从不向调用方报错。
func (s *Store) Load(ctx context.Context) []model.Event {
	events := s.read(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = events
	return model.CloneEvents(s.events)
}

func (s *Store) read(ctx context.Context) []model.Event {
	backend, ok := s.capability.Backend()
	if !ok {
		return nil
	}
	raw, found, err := backend.Get(ctx, Key)
	if err != nil {
		s.logger.Error("read event log failed, starting empty", "error", err)
		return nil
	}
	if !found || raw == "" {
		return nil
	}

	trimmed := bytes.TrimSpace([]byte(raw))
	if bytes.Equal(trimmed, []byte("null")) {
		s.logger.Warn("event log is not an array, starting empty")
		return nil
	}
	var events []model.Event
	if err := json.Unmarshal(trimmed, &events); err != nil {
		s.logger.Error("cannot parse event log, starting empty", "error", err, "bytes", len(raw))
		return nil
	}
	for i, evt := range events {
		if !evt.EventType.Valid() {
			s.logger.Error("event log holds a record without a known event type, starting empty", "index", i)
			return nil
		}
	}
	return events
}

// Append 追加事件并重写持久化镜像，返回新日志的副本。
// 副作用：持久化失败只记录诊断，内存日志照常推进。
func (s *Store) Append(ctx context.Context, evt model.Event) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, evt.Clone())
	s.persist(ctx)
	return model.CloneEvents(s.events)
}

// Clear 清空日志，并整体删除持久化 key（而不是写入空数组），
// 这样之后的 Load 走“不存在”分支。
func (s *Store) Clear(ctx context.Context) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	if backend, ok := s.capability.Backend(); ok {
		if err := backend.Remove(ctx, Key); err != nil {
			s.logger.Error("remove event log failed", "error", err)
		}
	}
	return []model.Event{}
}

// List 返回当前日志的副本，避免调用方修改内部数据。
func (s *Store) List() []model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneEvents(s.events)
}

// persist 调用方需持有写锁。
func (s *Store) persist(ctx context.Context) {
	backend, ok := s.capability.Backend()
	if !ok {
		return
	}
	data, err := json.Marshal(s.events)
	if err != nil {
		s.logger.Error("encode event log failed", "error", err)
		return
	}
	if err := backend.Set(ctx, Key, string(data)); err != nil {
		s.logger.Error("persist event log failed", "error", err, "events", len(s.events))
	}
}
