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

	authapp "github.com/wyfcoding/tradingassistant/internal/auth/application"
	"github.com/wyfcoding/tradingassistant/pkg/config"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout       = 10 * time.Second
	sessionPurgeInterval  = time.Hour
	defaultConfigLocation = "configs/tradingassistant/config.toml"
)

func main() {
	configPath := flag.String("config", defaultConfigLocation, "path to the TOML config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Fatal(context.Background(), "Service stopped with error", "error", err)
	}
	logger.Info(context.Background(), "Server exited")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger.Info(ctx, "Starting service", "service", cfg.ServiceName, "version", cfg.Version,
		"environment", cfg.Environment, "driver", cfg.Database.Driver)

	// 3. 组装依赖
	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}
	defer a.close()

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      a.router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 4. 启动 HTTP 服务与后台任务，任一失败即整体退出
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "Starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if a.purger != nil {
		g.Go(func() error {
			return authapp.RunSessionJanitor(gctx, a.purger, sessionPurgeInterval)
		})
	}

	// 5. 等待退出
	return g.Wait()
}
