package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-fall/internal/common/logger"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-fall")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建上下文（支持优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 创建服务
	fallService, err := service.NewFallService(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create fall service", zap.Error(err))
	}

	// 5. 启动服务（在 goroutine 中）
	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- fallService.Start(ctx)
	}()

	// 6. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		// 等待消费者关闭所有会话
		select {
		case err := <-serviceDone:
			if err != nil {
				log.Error("Service stopped with error", zap.Error(err))
			}
		case <-time.After(15 * time.Second):
			log.Warn("Timed out waiting for service to stop")
		}
	case err := <-serviceDone:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := fallService.Stop(stopCtx); err != nil {
		log.Error("Failed to stop fall service", zap.Error(err))
	}
}
