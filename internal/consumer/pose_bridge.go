package consumer

import (
	"context"
	"fmt"
	"strings"

	mqttcommon "wisefido-fall/internal/common/mqtt"
	rediscommon "wisefido-fall/internal/common/redis"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/metrics"
	"wisefido-fall/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Subscriber MQTT 订阅接口（*mqttcommon.Client 实现）
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// PoseBridge 将姿态估计服务发布的 MQTT 帧消息转发到 Redis Streams
// 主题格式: pose/{source_id}/frames
type PoseBridge struct {
	config      *config.Config
	mqttClient  Subscriber
	redisClient *redis.Client
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewPoseBridge 创建 MQTT 桥接
func NewPoseBridge(cfg *config.Config, mqttClient Subscriber, redisClient *redis.Client, m *metrics.Metrics, logger *zap.Logger) *PoseBridge {
	return &PoseBridge{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		metrics:     m,
		logger:      logger,
	}
}

// Start 订阅帧主题，阻塞直到 ctx 取消
func (b *PoseBridge) Start(ctx context.Context) error {
	topic := b.config.Fall.Topics.Frames
	if err := b.mqttClient.Subscribe(topic, b.config.MQTT.QoS, b.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to frames topic: %w", err)
	}

	b.logger.Info("Pose bridge started",
		zap.String("topic", topic),
		zap.String("stream", b.config.Fall.Stream.Input),
	)

	<-ctx.Done()
	return nil
}

// Stop 取消订阅
func (b *PoseBridge) Stop(ctx context.Context) error {
	if err := b.mqttClient.Unsubscribe(b.config.Fall.Topics.Frames); err != nil {
		b.logger.Error("Failed to unsubscribe", zap.Error(err))
	}
	b.logger.Info("Pose bridge stopped")
	return nil
}

func (b *PoseBridge) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		b.metrics.FrameError("topic")
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	topicSource := parts[1]

	msg, err := models.ParseFrameMessage(payload)
	if err != nil {
		b.metrics.FrameError("parse")
		b.logger.Error("Failed to parse frame message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return err
	}
	if msg.SourceID != topicSource {
		b.metrics.FrameError("source_mismatch")
		return fmt.Errorf("source_id %q does not match topic %s", msg.SourceID, topic)
	}

	stream := b.config.Fall.Stream.Input
	streamID, err := rediscommon.PublishJSONToStream(context.Background(), b.redisClient, stream, msg)
	if err != nil {
		b.logger.Error("Failed to publish to Redis Streams",
			zap.String("stream", stream),
			zap.Error(err),
		)
		return fmt.Errorf("failed to publish to stream: %w", err)
	}

	b.logger.Debug("Published pose frame to Redis Streams",
		zap.String("source_id", msg.SourceID),
		zap.Int("frame_index", msg.FrameIndex),
		zap.String("stream_id", streamID),
	)
	return nil
}
