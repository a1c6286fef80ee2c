package service

import (
	"context"
	"database/sql"
	"fmt"

	"wisefido-fall/internal/common/database"
	mqttcommon "wisefido-fall/internal/common/mqtt"
	rediscommon "wisefido-fall/internal/common/redis"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/consumer"
	"wisefido-fall/internal/metrics"
	"wisefido-fall/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FallService 跌倒检测服务
// MQTT 帧消息 → Redis Streams → 按视频源检测 → PostgreSQL / 事件流
type FallService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	metrics    *metrics.Metrics
	bridge     *consumer.PoseBridge
	consumer   *consumer.FrameConsumer
}

// NewFallService 创建跌倒检测服务
func NewFallService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*FallService, error) {
	// 初始化数据库
	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	eventsRepo := repository.NewFallEventsRepository(db, logger)
	if err := eventsRepo.EnsureSchema(ctx); err != nil {
		database.Close(db)
		return nil, err
	}

	// 初始化Redis
	redisClient := rediscommon.NewRedisClient(&cfg.Redis)
	if err := rediscommon.Ping(ctx, redisClient); err != nil {
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 初始化MQTT
	mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
	if err != nil {
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	m := metrics.New()
	cls, err := NewClassifierFromConfig(cfg, redisClient, m, logger)
	if err != nil {
		mqttClient.Disconnect()
		rediscommon.Close(redisClient)
		database.Close(db)
		return nil, err
	}
	var labeler consumer.Labeler
	if cls != nil {
		labeler = cls
	}

	return &FallService{
		config:     cfg,
		logger:     logger,
		db:         db,
		redis:      redisClient,
		mqttClient: mqttClient,
		metrics:    m,
		bridge:     consumer.NewPoseBridge(cfg, mqttClient, redisClient, m, logger),
		consumer:   consumer.NewFrameConsumer(cfg, redisClient, eventsRepo, labeler, m, logger),
	}, nil
}

// Start 启动所有组件，阻塞直到 ctx 取消或某个组件失败
func (s *FallService) Start(ctx context.Context) error {
	s.logger.Info("Starting fall service components",
		zap.Bool("classifier_enabled", s.config.Classifier.Enabled),
		zap.String("scan_policy", s.config.Fall.Detection.ScanPolicy),
		zap.String("association", s.config.Fall.Detection.Association),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.metrics.StartServer(gctx, s.config.Metrics.Addr); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.bridge.Start(gctx); err != nil {
			return fmt.Errorf("failed to start pose bridge: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.consumer.Start(gctx); err != nil {
			return fmt.Errorf("failed to start frame consumer: %w", err)
		}
		return nil
	})

	s.logger.Info("Fall service started successfully", zap.String("metrics_addr", s.config.Metrics.Addr))
	return g.Wait()
}

// Stop 停止服务，应在 Start 返回后调用
func (s *FallService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping fall service")

	if s.bridge != nil {
		if err := s.bridge.Stop(ctx); err != nil {
			s.logger.Error("Error stopping pose bridge", zap.Error(err))
		}
	}

	// 断开MQTT
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	// 关闭Redis
	if s.redis != nil {
		rediscommon.Close(s.redis)
	}

	// 关闭数据库
	if s.db != nil {
		database.Close(s.db)
	}

	s.logger.Info("Fall service stopped")
	return nil
}
