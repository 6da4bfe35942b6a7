package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qianlnk/mafia/api"
	"github.com/qianlnk/mafia/archive"
	"github.com/qianlnk/mafia/config"
	"github.com/qianlnk/mafia/logger"
	"github.com/qianlnk/mafia/services"
	"github.com/qianlnk/mafia/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("日志级别无效: %v", err)
	}
	l, err := logger.New(level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger.SetDefaultLogger(l)
	defer l.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("服务退出: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	sessions, err := newSessionStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer sessions.Close()

	results, err := archive.New(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		return fmt.Errorf("初始化归档失败: %w", err)
	}
	defer results.Close(context.Background())

	archiveWorker := services.NewArchiveWorker(services.NewArchiveWorkerOptions{
		Repository: results,
	})
	workerDone := make(chan struct{})
	go func() {
		archiveWorker.Start(ctx)
		close(workerDone)
	}()

	rooms := services.NewRoomManager(services.Options{
		Store:   sessions,
		Rand:    services.NewRand(cfg.Game.Seed),
		Results: archiveWorker,
		Timing: services.PhaseTiming{
			Night: cfg.Game.NightDuration,
			Day:   cfg.Game.DayDuration,
		},
		BotGrace:    cfg.Game.BotGrace,
		MaxPlayers:  cfg.Game.MaxPlayers,
		AutoResolve: cfg.Game.AutoResolve,
	})
	defer rooms.Close()

	handler := api.NewHandler(api.HandlerOptions{
		Rooms:          rooms,
		Sockets:        services.NewWebSocketManager(rooms),
		Results:        results,
		Tokens:         api.NewTokenIssuer(cfg.Auth.Secret, cfg.Auth.TTL),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(handler, cfg.Server.AllowedOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动在 %s (存储: %s, 归档: %s)", cfg.Server.Addr, cfg.Store.Driver, cfg.Archive.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("正在关闭服务器")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("关闭服务器失败: %v", err)
	}
	<-workerDone
	return nil
}

func newSessionStore(ctx context.Context, cfg config.StoreConfig) (store.SessionStore, error) {
	switch cfg.Driver {
	case "redis":
		s, err := store.NewRedisStore(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "firebase":
		s, err := store.NewFirebaseStore(ctx, cfg.FirebaseURL, cfg.FirebaseCredentials, cfg.PollInterval)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}
