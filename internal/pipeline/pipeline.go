// Package pipeline 单视频源的有序生产者/消费者：生产者读取帧，消费者独占检测器状态
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/metrics"
	"wisefido-fall/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DetectorFactory 按视频源 fps 创建检测器
type DetectorFactory func(fps float64) (*detector.Detector, error)

// Options 运行参数
type Options struct {
	BufferSize     int                            // 生产者与消费者之间的缓冲帧数，默认 64
	MaxGapFrames   int                            // 帧号向前跳变的上限，超出的帧丢弃，默认 1000
	ContextSeconds float64                        // 事件开始前统计击打标注的时长，0 表示不统计
	OnFrame        func(res detector.FrameResult) // 每帧处理后回调（在消费者 goroutine 中执行）
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
}

// Result 运行结果
type Result struct {
	SourceID      string
	FPS           float64
	Frames        int                // 输入检测器的帧数（包含补齐的空帧）
	GapFrames     int                // 为缺失帧号补齐的空帧数
	DataErrors    int                // 因关键点缺失按空帧处理的帧数
	DroppedFrames int                // 帧号跳变超过上限而丢弃的帧数
	Events        []models.FallEvent // 按开始时间排序
	Cancelled     bool               // ctx 取消时提前结束（未关闭的区间照常关闭）
}

// Run 读取 src 直到 io.EOF、EOS 消息或 ctx 取消，返回检测到的事件
// 缺失的帧号按空帧补齐，跳变超过 MaxGapFrames 的帧丢弃；同一输入中 source_id 必须一致
func Run(ctx context.Context, src FrameSource, newDetector DetectorFactory, opts Options) (*Result, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.MaxGapFrames <= 0 {
		opts.MaxGapFrames = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	frames := make(chan *models.FrameMessage, opts.BufferSize)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(frames)
		for {
			msg, err := src.Next(gctx)
			if err != nil {
				if errors.Is(err, io.EOF) || gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case frames <- msg:
			case <-gctx.Done():
				return nil
			}
			if msg.EOS {
				return nil
			}
		}
	})

	c := &runner{newDetector: newDetector, opts: opts, logger: logger, result: &Result{}}
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				c.result.Cancelled = ctx.Err() != nil
				c.finish()
				return nil
			case msg, ok := <-frames:
				if !ok || msg.EOS {
					c.finish()
					return nil
				}
				if err := c.handle(msg); err != nil {
					c.finish()
					return err
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return c.result, err
	}
	return c.result, nil
}

type runner struct {
	newDetector DetectorFactory
	opts        Options
	logger      *zap.Logger

	det     *detector.Detector
	strikes *detector.StrikeContext
	next    int
	result  *Result
}

func (c *runner) handle(msg *models.FrameMessage) error {
	if c.det == nil {
		det, err := c.newDetector(msg.FPS)
		if err != nil {
			return fmt.Errorf("failed to create detector for %s: %w", msg.SourceID, err)
		}
		c.det = det
		c.strikes = detector.NewStrikeContext(det.Params(), detector.FramesFromSeconds(c.opts.ContextSeconds, msg.FPS))
		c.result.SourceID = msg.SourceID
		c.result.FPS = msg.FPS
		c.next = msg.FrameIndex
	}
	if msg.SourceID != c.result.SourceID {
		return fmt.Errorf("mixed sources in one stream: %s and %s", c.result.SourceID, msg.SourceID)
	}
	if msg.FrameIndex < c.next {
		return fmt.Errorf("%w: %s frame %d after %d", detector.ErrFrameOrder, msg.SourceID, msg.FrameIndex, c.next-1)
	}

	if gap := msg.FrameIndex - c.next; gap > c.opts.MaxGapFrames {
		c.opts.Metrics.FrameError("gap_overflow")
		c.result.DroppedFrames++
		c.logger.Warn("Frame index jump exceeds gap limit, dropping frame",
			zap.String("source_id", msg.SourceID),
			zap.Int("frame_index", msg.FrameIndex),
			zap.Int("next_frame", c.next),
			zap.Int("max_gap_frames", c.opts.MaxGapFrames),
		)
		return nil
	}

	for c.next < msg.FrameIndex {
		if err := c.process(c.next, nil, ""); err != nil {
			return err
		}
		c.result.GapFrames++
	}
	return c.process(msg.FrameIndex, msg.Persons, msg.Event)
}

func (c *runner) process(index int, persons models.FrameDetections, event string) error {
	start := time.Now()
	res, err := c.det.Process(index, persons)
	var dataErr *detector.DataError
	if errors.As(err, &dataErr) {
		c.logger.Warn("Pose is missing landmarks, treating frame as empty",
			zap.String("source_id", c.result.SourceID),
			zap.Int("frame_index", index),
			zap.Error(err),
		)
		c.opts.Metrics.FrameError("data")
		c.result.DataErrors++
		res, err = c.det.Process(index, nil)
	}
	if err != nil {
		return err
	}

	c.next = index + 1
	c.result.Frames++
	c.strikes.Record(index, event)
	c.observe(res)
	c.opts.Metrics.FrameProcessed(time.Since(start))
	return nil
}

func (c *runner) observe(res detector.FrameResult) {
	m := c.opts.Metrics
	m.Triggers(len(res.Fired))
	m.Candidates(len(res.Events), res.Discarded)
	if res.Reset {
		m.TrackReset()
	}
	for _, ev := range res.Events {
		c.strikes.Annotate(&ev)
		c.result.Events = append(c.result.Events, ev)
		c.logger.Info("Fall event detected",
			zap.String("source_id", c.result.SourceID),
			zap.Float64("start_time", ev.StartTime),
			zap.Float64("end_time", ev.EndTime),
			zap.Int("trigger_count", ev.TriggerCount),
		)
	}
	if c.opts.OnFrame != nil {
		c.opts.OnFrame(res)
	}
}

func (c *runner) finish() {
	if c.det == nil {
		return
	}
	c.observe(c.det.Finish())
	detector.SortEvents(c.result.Events)
}
