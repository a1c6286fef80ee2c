package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	rediscommon "wisefido-fall/internal/common/redis"
	"wisefido-fall/internal/config"
	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/metrics"
	"wisefido-fall/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// EventStore 事件持久化（*repository.FallEventsRepository 实现）
type EventStore interface {
	CreateFallEvent(ctx context.Context, ev *models.ClassifiedEvent) error
	UpdateClassification(ctx context.Context, eventID, label, summary string) error
}

// Labeler 事件摘要分类（*classifier.Classifier 实现）
type Labeler interface {
	Classify(ctx context.Context, summary string) string
}

// shutdownTimeout 退出时关闭所有会话的时限
const shutdownTimeout = 10 * time.Second

// FrameConsumer 从 Redis Streams 读取帧消息，按视频源维护检测器
// 所有会话状态只在 Start 的消费循环中访问
type FrameConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	store       EventStore
	labeler     Labeler // nil 表示不分类
	metrics     *metrics.Metrics
	logger      *zap.Logger

	sessions map[string]*session
	now      func() time.Time
}

// NewFrameConsumer 创建帧消费者
func NewFrameConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	store EventStore,
	labeler Labeler,
	m *metrics.Metrics,
	logger *zap.Logger,
) *FrameConsumer {
	return &FrameConsumer{
		config:      cfg,
		redisClient: redisClient,
		store:       store,
		labeler:     labeler,
		metrics:     m,
		logger:      logger,
		sessions:    make(map[string]*session),
		now:         time.Now,
	}
}

// Start 启动消费循环，ctx 取消时关闭所有会话后返回
func (c *FrameConsumer) Start(ctx context.Context) error {
	stream := c.config.Fall.Stream.Input
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Fall.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Frame consumer started",
		zap.String("consumer_group", c.config.Fall.ConsumerGroup),
		zap.String("consumer_name", c.config.Fall.ConsumerName),
		zap.String("stream", stream),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		default:
		}

		if err := c.consumeStream(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Failed to consume stream",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			select {
			case <-ctx.Done():
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// consumeStream 读取一批消息，处理后确认，再检查空闲会话
func (c *FrameConsumer) consumeStream(ctx context.Context) error {
	stream := c.config.Fall.Stream.Input
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Fall.ConsumerGroup,
		c.config.Fall.ConsumerName,
		c.config.Fall.BatchSize,
		c.config.Fall.BlockTimeout,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	ids := make([]string, 0, len(messages))
	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
		ids = append(ids, msg.ID)
	}
	if len(ids) > 0 {
		if err := rediscommon.Ack(ctx, c.redisClient, stream, c.config.Fall.ConsumerGroup, ids...); err != nil {
			c.logger.Error("Failed to ack messages", zap.Int("count", len(ids)), zap.Error(err))
		}
	}

	c.sweepIdle(ctx, c.now())
	return nil
}

// processMessage 处理单条帧消息；解析失败的消息记录后丢弃
func (c *FrameConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	data, err := msg.Data()
	if err != nil {
		c.metrics.FrameError("parse")
		return err
	}
	frameMsg, err := models.ParseFrameMessage([]byte(data))
	if err != nil {
		c.metrics.FrameError("parse")
		return err
	}

	s, ok := c.sessions[frameMsg.SourceID]
	if frameMsg.EOS {
		if ok {
			c.logger.Info("Source ended", zap.String("source_id", frameMsg.SourceID))
			c.closeSession(ctx, s)
		}
		return nil
	}

	if !ok {
		s, err = c.openSession(frameMsg)
		if err != nil {
			return err
		}
	} else if frameMsg.FPS != s.fps {
		c.logger.Warn("Frame fps differs from session fps",
			zap.String("source_id", s.sourceID),
			zap.Float64("session_fps", s.fps),
			zap.Float64("frame_fps", frameMsg.FPS),
		)
	}

	f := frame{index: frameMsg.FrameIndex, persons: frameMsg.Persons, event: frameMsg.Event}
	ready, status := s.push(f, c.now())
	if status == pushOverflow {
		// 帧号跳变过大：按视频源结束处理旧会话，从新帧号重新开始
		c.metrics.FrameError("gap_overflow")
		c.logger.Warn("Frame index jump exceeds gap limit, restarting session",
			zap.String("source_id", s.sourceID),
			zap.Int("frame_index", frameMsg.FrameIndex),
			zap.Int("next_frame", s.next),
			zap.Int("max_gap_frames", s.maxGap),
		)
		c.closeSession(ctx, s)
		if s, err = c.openSession(frameMsg); err != nil {
			return err
		}
		ready, status = s.push(f, c.now())
	}
	if status == pushLate {
		c.metrics.FrameError("late")
		c.logger.Warn("Dropping late or duplicate frame",
			zap.String("source_id", s.sourceID),
			zap.Int("frame_index", frameMsg.FrameIndex),
			zap.Int("next_frame", s.next),
		)
		return nil
	}
	return c.feed(ctx, s, ready)
}

func (c *FrameConsumer) openSession(msg *models.FrameMessage) (*session, error) {
	params := c.config.Fall.Detection.Params(msg.FPS)
	assoc, err := c.config.Fall.Detection.Associator()
	if err != nil {
		return nil, err
	}
	det, err := detector.NewDetector(params, assoc, c.logger.With(zap.String("source_id", msg.SourceID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create detector for %s: %w", msg.SourceID, err)
	}

	sc := c.config.Fall.Session
	s := newSession(msg.SourceID, msg.FPS, det, msg.FrameIndex, sc.ReorderWindow, sc.MaxGapFrames, c.now())
	s.strikes = detector.NewStrikeContext(params, c.config.Fall.Detection.ContextFrames(msg.FPS))
	c.sessions[msg.SourceID] = s
	c.metrics.SetActiveSessions(len(c.sessions))

	c.logger.Info("Source session opened",
		zap.String("source_id", msg.SourceID),
		zap.Float64("fps", msg.FPS),
		zap.Int("first_frame", msg.FrameIndex),
	)
	return s, nil
}

// feed 按序把帧交给检测器
func (c *FrameConsumer) feed(ctx context.Context, s *session, frames []frame) error {
	for _, f := range frames {
		start := time.Now()
		res, err := s.det.Process(f.index, f.persons)
		var dataErr *detector.DataError
		if errors.As(err, &dataErr) {
			c.metrics.FrameError("data")
			c.logger.Warn("Pose is missing landmarks, treating frame as empty",
				zap.String("source_id", s.sourceID),
				zap.Int("frame_index", f.index),
				zap.Error(err),
			)
			res, err = s.det.Process(f.index, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to process frame %d of %s: %w", f.index, s.sourceID, err)
		}
		if f.gap {
			c.metrics.FrameError("gap")
		}
		s.strikes.Record(f.index, f.event)

		c.metrics.FrameProcessed(time.Since(start))
		c.record(res)
		c.handleEvents(ctx, s, res.Events)
	}
	return nil
}

func (c *FrameConsumer) record(res detector.FrameResult) {
	c.metrics.Triggers(len(res.Fired))
	c.metrics.Candidates(len(res.Events), res.Discarded)
	if res.Reset {
		c.metrics.TrackReset()
	}
}

// closeSession 释放缓冲帧、关闭未结束的区间并删除会话
func (c *FrameConsumer) closeSession(ctx context.Context, s *session) {
	if err := c.feed(ctx, s, s.drain()); err != nil {
		c.logger.Error("Failed to drain session", zap.String("source_id", s.sourceID), zap.Error(err))
	}
	res := s.det.Finish()
	c.record(res)
	c.handleEvents(ctx, s, res.Events)

	delete(c.sessions, s.sourceID)
	c.metrics.SetActiveSessions(len(c.sessions))
	c.logger.Info("Source session closed",
		zap.String("source_id", s.sourceID),
		zap.Int("events", len(s.det.Events())),
	)
}

func (c *FrameConsumer) sweepIdle(ctx context.Context, now time.Time) {
	for _, s := range c.sessions {
		if s.idle(now, c.config.Fall.Session.IdleTimeout) {
			c.logger.Info("Source idle, closing session",
				zap.String("source_id", s.sourceID),
				zap.Time("last_seen", s.lastSeen),
			)
			c.closeSession(ctx, s)
		}
	}
}

// shutdown 退出前按视频源结束处理所有会话
func (c *FrameConsumer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, s := range c.sessions {
		c.closeSession(ctx, s)
	}
	c.logger.Info("Frame consumer stopped")
}

// handleEvents 持久化、分类并发布事件；单个事件失败不影响其他事件
func (c *FrameConsumer) handleEvents(ctx context.Context, s *session, events []models.FallEvent) {
	for _, ev := range events {
		s.strikes.Annotate(&ev)
		ce := BuildClassifiedEvent(s.sourceID, s.det.Params(), ev, c.now())
		c.logger.Info("Fall event detected",
			zap.String("event_id", ce.EventID),
			zap.String("source_id", ce.SourceID),
			zap.String("track_id", ev.TrackID),
			zap.Float64("start_time", ev.StartTime),
			zap.Float64("end_time", ev.EndTime),
			zap.Int("trigger_count", ev.TriggerCount),
		)

		stored := true
		if err := c.store.CreateFallEvent(ctx, ce); err != nil {
			stored = false
			c.logger.Error("Failed to store fall event", zap.String("event_id", ce.EventID), zap.Error(err))
		}

		if c.labeler != nil {
			ce.Label = c.labeler.Classify(ctx, ce.Summary)
			if stored {
				if err := c.store.UpdateClassification(ctx, ce.EventID, ce.Label, ce.Summary); err != nil {
					c.logger.Error("Failed to update classification", zap.String("event_id", ce.EventID), zap.Error(err))
				}
			}
		}

		if _, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Fall.Stream.Output, ce); err != nil {
			c.logger.Error("Failed to publish fall event",
				zap.String("event_id", ce.EventID),
				zap.String("stream", c.config.Fall.Stream.Output),
				zap.Error(err),
			)
		}
	}
}
