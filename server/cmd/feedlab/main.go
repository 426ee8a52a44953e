package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedlab/server/internal/api"
	"feedlab/server/internal/app"
	"feedlab/server/internal/config"
	"feedlab/server/internal/export"
	"feedlab/server/internal/feed"
)

func main() {
	// 参数用 flag，部署差异（存储驱动、导出 bucket、日志级别）用环境变量覆盖。
	configPath := flag.String("config", "server/configs/config.yaml", "config file path")
	addr := flag.String("addr", "", "http listen address (overrides config)")
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		log.Fatalf("feedlab: %v", err)
	}
}

func run(configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	core, err := app.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init core: %w", err)
	}
	defer core.Close()
	logger := core.Logger

	posts, err := feed.LoadPosts(cfg.Feed.PostsPath)
	if err != nil {
		return err
	}
	sink, err := export.NewSink(ctx, cfg.Export)
	if err != nil {
		return fmt.Errorf("init export sink: %w", err)
	}

	server := api.NewServer(cfg, core.Events, feed.NewService(posts, core.Events), sink, core.Capability, logger)

	if addr == "" {
		addr = cfg.Addr()
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("feedlab server listening", "addr", addr, "storage", cfg.Storage.Driver,
		"session_id", core.Events.SessionID(ctx), "posts", len(posts))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
