// Package export 实现“把一段文本作为文件交给宿主环境”的下载原语。
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"feedlab/server/internal/config"
)

// Sink 接收一个导出文件，返回它落地后的位置。
type Sink interface {
	Offer(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// DirSink 把文件写入本地目录。
type DirSink struct {
	Dir string
}

func (d DirSink) Offer(_ context.Context, name, _ string, body []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write export %s: %w", name, err)
	}
	return path, nil
}

// NewSink 按配置选择落地方式：配置了 bucket 时上传 S3，否则写本地目录。
func NewSink(ctx context.Context, cfg config.ExportConfig) (Sink, error) {
	if cfg.Bucket == "" {
		return DirSink{Dir: cfg.Dir}, nil
	}
	return NewS3Sink(ctx, cfg.Region, cfg.Bucket, cfg.Prefix)
}
