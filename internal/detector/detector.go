package detector

import (
	"fmt"

	"wisefido-fall/internal/models"

	"go.uber.org/zap"
)

// FrameResult 单帧处理结果
type FrameResult struct {
	FrameIndex int
	Fired      []string           // 本帧触发的 track ID
	Events     []models.FallEvent // 本帧关闭并通过时长过滤的事件
	Discarded  int                // 本帧被丢弃的候选区间数
	Reset      bool               // 本帧丢弃了上一帧的所有 track
	Tracks     int                // 处理后存活的 track 数
}

// Detector 逐帧跌倒检测（Tracker + TrackState + Aggregator）
type Detector struct {
	params     Params
	tracker    *Tracker
	aggregator *Aggregator
	logger     *zap.Logger

	lastFrame int
	finished  bool
	events    []models.FallEvent
}

// NewDetector 创建检测器，associator 为 nil 时使用贪心匹配
func NewDetector(params Params, associator Associator, logger *zap.Logger) (*Detector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		params:     params,
		tracker:    NewTracker(params, associator),
		aggregator: NewAggregator(params),
		logger:     logger,
		lastFrame:  -1,
	}, nil
}

// Params 检测参数
func (d *Detector) Params() Params {
	return d.params
}

// Process 处理第 frameIndex 帧，帧序号必须严格递增
// 姿态缺少关键点时返回 *DataError，检测器状态保持不变
func (d *Detector) Process(frameIndex int, detections models.FrameDetections) (FrameResult, error) {
	if d.finished {
		return FrameResult{}, ErrFinished
	}
	if frameIndex <= d.lastFrame {
		return FrameResult{}, fmt.Errorf("%w: got %d after %d", ErrFrameOrder, frameIndex, d.lastFrame)
	}

	pl := d.tracker.plan(detections)

	// 先计算所有匹配人物的肩髋差，出错时不修改任何状态
	diffs := make([]float64, len(pl.bindings))
	for i, b := range pl.bindings {
		if !b.Matched {
			continue
		}
		diff, err := Separation(detections[i])
		if err != nil {
			return FrameResult{}, fmt.Errorf("frame %d person %d: %w", frameIndex, i, err)
		}
		diffs[i] = diff
	}

	d.tracker.commit(pl)
	d.lastFrame = frameIndex

	result := FrameResult{
		FrameIndex: frameIndex,
		Reset:      pl.reset,
	}
	if pl.reset {
		d.logger.Debug("Track states reset on empty transition",
			zap.Int("frame_index", frameIndex),
			zap.Int("detections", len(detections)),
		)
	}
	for i, c := range pl.centers {
		if c == (models.Point{}) {
			d.logger.Debug("No visible torso landmarks, using origin as center",
				zap.Int("frame_index", frameIndex),
				zap.Int("person", i),
			)
		}
	}

	var firings []Firing
	for i, b := range pl.bindings {
		if !b.Matched {
			continue
		}
		step := b.State.Step(diffs[i], d.params)
		if !step.Fired {
			continue
		}

		result.Fired = append(result.Fired, b.State.ID())
		key := frameGlobalKey
		if d.params.ScanPolicy == ScanAllTracks {
			key = b.State.ID()
		}
		firings = append(firings, Firing{
			Key:      key,
			PoseInfo: d.poseInfo(detections[i], diffs[i], step),
		})
		d.logger.Debug("Fall trigger fired",
			zap.Int("frame_index", frameIndex),
			zap.String("track_id", b.State.ID()),
			zap.Float64("separation", diffs[i]),
			zap.Float64("peak_separation", step.PeakSeparation),
		)

		// 每帧只允许一个触发，其余 track 本帧不评估，状态原样保留
		if d.params.ScanPolicy == ScanFirstTrigger {
			break
		}
	}

	result.Events, result.Discarded = d.aggregator.Observe(frameIndex, firings)
	result.Tracks = d.tracker.Tracks()
	d.events = append(d.events, result.Events...)
	return result, nil
}

// Finish 结束输入，关闭所有未关闭的区间
// 调用方提前停止时同样调用 Finish，行为与自然结束一致
func (d *Detector) Finish() FrameResult {
	if d.finished {
		return FrameResult{FrameIndex: d.lastFrame}
	}
	d.finished = true

	result := FrameResult{FrameIndex: d.lastFrame}
	result.Events, result.Discarded = d.aggregator.Flush()
	d.events = append(d.events, result.Events...)
	return result
}

// Events 目前为止输出的所有事件（按开始时间排序的副本）
func (d *Detector) Events() []models.FallEvent {
	out := make([]models.FallEvent, len(d.events))
	copy(out, d.events)
	SortEvents(out)
	return out
}

func (d *Detector) poseInfo(pose models.PersonPose, diff float64, step StepResult) *models.FallPoseInfo {
	lowest, knees := LowestPoint(pose)
	info := &models.FallPoseInfo{
		PeakSeparation:    step.PeakSeparation,
		TriggerSeparation: diff,
		LowestPoint:       lowest,
		KneesVisible:      knees,
		ImpactLocation:    impactLocation(lowest),
	}
	if step.PeakAge > 0 {
		info.FallVelocity = (step.PeakSeparation - diff) * d.params.FPS / float64(step.PeakAge)
	}
	return info
}

// impactLocation 根据最低点在画面中的高度描述落点
func impactLocation(lowest float64) string {
	switch {
	case lowest >= 0.75:
		return fmt.Sprintf("the bottom of the frame (y=%.2f)", lowest)
	case lowest >= 0.5:
		return fmt.Sprintf("the lower half of the frame (y=%.2f)", lowest)
	default:
		return fmt.Sprintf("the upper half of the frame (y=%.2f)", lowest)
	}
}

// DetectFallIntervals 对完整的帧序列运行检测，返回所有事件
func DetectFallIntervals(frames []models.FrameDetections, params Params, associator Associator) ([]models.FallEvent, error) {
	d, err := NewDetector(params, associator, nil)
	if err != nil {
		return nil, err
	}
	for i, frame := range frames {
		if _, err := d.Process(i, frame); err != nil {
			return nil, err
		}
	}
	d.Finish()
	return d.Events(), nil
}
