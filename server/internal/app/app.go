// Package app 组装事件日志核心：日志、持久化能力、会话身份、事件存储与 EventLogger。
// HTTP 服务与命令行工具共用同一套组装，保证两者读写同一份持久化数据。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"feedlab/server/internal/config"
	"feedlab/server/internal/eventlog"
	"feedlab/server/internal/logging"
	"feedlab/server/internal/session"
	"feedlab/server/internal/storage"
	"feedlab/server/internal/timeline"
)

type Core struct {
	Logger     *slog.Logger
	Capability storage.Capability
	Identity   *session.Identity
	Store      *timeline.Store
	Events     *eventlog.Logger

	closers []io.Closer
}

// Open 在应用启动时调用一次。返回的 Core 需要在退出时 Close。
func Open(ctx context.Context, cfg *config.Config) (*Core, error) {
	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	core := &Core{Logger: logger}
	if logCloser != nil {
		core.closers = append(core.closers, logCloser)
	}

	capability, storeCloser, err := storage.Open(cfg.Storage)
	if err != nil {
		core.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	core.closers = append(core.closers, storeCloser)
	core.Capability = capability
	if _, ok := capability.Backend(); !ok {
		logger.Warn("durable storage unavailable, events live in memory only")
	}

	core.Identity = session.NewIdentity(capability, logger)
	core.Store = timeline.NewStore(capability, logger)
	core.Events = eventlog.New(ctx, core.Store, core.Identity, eventlog.WithLogger(logger))
	return core, nil
}

// Close 按打开的逆序释放资源。
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
