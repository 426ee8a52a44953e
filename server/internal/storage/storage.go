package storage

import (
	"context"
	"fmt"
	"io"

	"feedlab/server/internal/config"
)

// Backend 是字符串键值的持久化后端，对应浏览器里的 localStorage。
type Backend interface {
	// Get 读取 key，ok=false 表示不存在。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set 整体覆盖 key 的值。
	Set(ctx context.Context, key, value string) error
	// Remove 删除 key，key 不存在时不报错。
	Remove(ctx context.Context, key string) error
}

// Capability 是持久化能力探测的结果：Available 携带后端，零值即 Unavailable。
type Capability struct {
	backend Backend
}

// Available 包装一个可用的后端。
func Available(b Backend) Capability {
	return Capability{backend: b}
}

// Unavailable 表示当前运行环境没有持久化能力，所有读取为空、写入跳过。
func Unavailable() Capability {
	return Capability{}
}

// Backend 返回后端；ok=false 表示不可用。
func (c Capability) Backend() (Backend, bool) {
	return c.backend, c.backend != nil
}

func (c Capability) String() string {
	if c.backend == nil {
		return "unavailable"
	}
	return "available"
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open 按配置打开后端。返回的 Closer 总是非 nil。
func Open(cfg config.StorageConfig) (Capability, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverNone:
		return Unavailable(), nopCloser{}, nil
	case config.DriverMemory:
		return Available(NewMemoryBackend()), nopCloser{}, nil
	case config.DriverFile:
		b, err := NewFileBackend(cfg.Path)
		if err != nil {
			return Unavailable(), nopCloser{}, err
		}
		return Available(b), nopCloser{}, nil
	case config.DriverSQLite:
		b, err := OpenSQLite(cfg.Path)
		if err != nil {
			return Unavailable(), nopCloser{}, err
		}
		return Available(b), b, nil
	default:
		return Unavailable(), nopCloser{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
