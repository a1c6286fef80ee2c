package detector

import (
	"fmt"
	"math"
)

// ScanPolicy 每帧触发判断的扫描策略
type ScanPolicy string

const (
	// ScanFirstTrigger 按检测顺序扫描，遇到第一个触发即停止（每帧最多一个 track 触发）
	ScanFirstTrigger ScanPolicy = "first"
	// ScanAllTracks 评估所有匹配的 track，聚合器按 track 分组
	ScanAllTracks ScanPolicy = "all"
)

// Params 检测参数（窗口已换算为帧数）
type Params struct {
	FPS              float64
	AlignThreshold   float64 // 肩髋差高于此值视为站立
	DropThreshold    float64 // 肩髋差低于此值视为倒地
	Window           int     // 历史窗口帧数
	StandWindow      int     // 触发前需要连续站立的帧数，也是区间合并间隔
	MinDuration      float64 // 秒，包含
	MaxDuration      float64 // 秒，包含
	CenterVisibility float64 // 计算身体中心时关键点可见度阈值（严格大于）

	ScanPolicy          ScanPolicy
	CloseOnQuiet        bool // 无触发帧立即关闭当前区间
	EmptyFrameTolerance int  // 容忍连续空帧数，0 表示空帧立即重置所有 track
}

// FramesFromSeconds 秒数换算为帧数（四舍五入）
func FramesFromSeconds(seconds, fps float64) int {
	return int(math.Round(seconds * fps))
}

// DefaultParams 默认参数
func DefaultParams(fps float64) Params {
	return Params{
		FPS:              fps,
		AlignThreshold:   0.08,
		DropThreshold:    0.15,
		Window:           FramesFromSeconds(2.0, fps),
		StandWindow:      FramesFromSeconds(2.0, fps),
		MinDuration:      0.3,
		MaxDuration:      10.0,
		CenterVisibility: 0.3,
		ScanPolicy:       ScanFirstTrigger,
		CloseOnQuiet:     true,
	}
}

// Validate 校验参数
func (p Params) Validate() error {
	if p.FPS <= 0 || math.IsNaN(p.FPS) || math.IsInf(p.FPS, 0) {
		return fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidParams, p.FPS)
	}
	if p.Window < 1 {
		return fmt.Errorf("%w: window must be at least 1 frame, got %d", ErrInvalidParams, p.Window)
	}
	if p.StandWindow < 0 {
		return fmt.Errorf("%w: stand window must be non-negative, got %d", ErrInvalidParams, p.StandWindow)
	}
	if p.MinDuration < 0 || p.MaxDuration < p.MinDuration {
		return fmt.Errorf("%w: duration bounds [%v, %v] are invalid", ErrInvalidParams, p.MinDuration, p.MaxDuration)
	}
	if p.EmptyFrameTolerance < 0 {
		return fmt.Errorf("%w: empty frame tolerance must be non-negative, got %d", ErrInvalidParams, p.EmptyFrameTolerance)
	}
	switch p.ScanPolicy {
	case ScanFirstTrigger, ScanAllTracks:
	default:
		return fmt.Errorf("%w: unknown scan policy %q", ErrInvalidParams, p.ScanPolicy)
	}
	return nil
}
