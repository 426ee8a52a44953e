package session

import (
	"context"
	"log/slog"
	"sync"

	"feedlab/server/internal/storage"

	"github.com/google/uuid"
)

const (
	// Key 是会话 ID 在持久化存储中的 key。
	Key = "xhs-session-id"
	// Fallback 是没有持久化能力时返回的固定会话 ID。
	Fallback = "server-session"
)

// Identity 负责生成/读取每个存储空间唯一的会话 ID，并独占 Key 的写入。
type Identity struct {
	capability storage.Capability
	newID      func() string
	logger     *slog.Logger

	mu sync.Mutex
	id string
}

func NewIdentity(capability storage.Capability, logger *slog.Logger) *Identity {
	if logger == nil {
		logger = slog.Default()
	}
	return &Identity{
		capability: capability,
		newID:      uuid.NewString,
		logger:     logger.With("component", "session"),
	}
}

// WithIDGenerator 替换 ID 生成器，供测试注入确定值。
func (i *Identity) WithIDGenerator(gen func() string) *Identity {
	i.newID = gen
	return i
}

// Get 返回当前会话 ID：已有则复用，没有则生成并写入。结果在进程内记忆化。
// 持久化不可用时返回 Fallback 且不做任何写入。
func (i *Identity) Get(ctx context.Context) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}

	backend, ok := i.capability.Backend()
	if !ok {
		i.id = Fallback
		return i.id
	}

	existing, found, err := backend.Get(ctx, Key)
	if err != nil {
		i.logger.Error("read session id failed, generating a new one", "error", err)
	}
	if found && existing != "" {
		i.id = existing
		return i.id
	}

	id := i.newID()
	if err := backend.Set(ctx, Key, id); err != nil {
		// 写失败不影响本进程内使用，只是刷新后会换一个新会话。
		i.logger.Error("persist session id failed", "error", err)
	}
	i.id = id
	i.logger.Info("session created", "session_id", id)
	return i.id
}

// Reset 丢弃记忆化的值，下一次 Get 会重新读取存储。存储被整体清空后调用。
func (i *Identity) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.id = ""
}
