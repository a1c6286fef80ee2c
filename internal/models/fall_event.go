package models

import (
	"time"
)

// 分类标签（LLM 分类器输出）
const (
	LabelKnockdown = "knockdown"
	LabelTakedown  = "takedown"
	LabelSlip      = "slip"
	LabelUnknown   = "unknown"
)

// FallEvent 跌倒区间（由检测器输出，输出后不可变）
type FallEvent struct {
	StartTime    float64       `json:"start_time"`               // 秒，start_frame / fps
	EndTime      float64       `json:"end_time"`                 // 秒，end_frame / fps
	StartFrame   int           `json:"start_frame"`              // 第一个触发帧
	EndFrame     int           `json:"end_frame"`                // 最后一个触发帧
	TriggerCount int           `json:"trigger_count"`            // 组内触发帧数量
	TrackID      string        `json:"track_id,omitempty"`       // 按身份聚合时的 track，帧全局聚合时为空
	PoseInfo     *FallPoseInfo `json:"fall_pose_info,omitempty"` // 首次触发时的姿态信息
}

// Duration 区间时长（end_time - start_time）
func (e FallEvent) Duration() float64 {
	return e.EndTime - e.StartTime
}

// FallPoseInfo 首次触发时记录的姿态元数据
type FallPoseInfo struct {
	PeakSeparation    float64 `json:"peak_separation"`           // 历史窗口中的最大肩髋差
	TriggerSeparation float64 `json:"trigger_separation"`        // 触发帧的肩髋差
	FallVelocity      float64 `json:"fall_velocity"`             // 每秒肩髋差下降量
	LowestPoint       float64 `json:"lowest_point"`              // 身体最低点 y（图像坐标，越大越低）
	KneesVisible      bool    `json:"knees_visible"`             // 最低点是否包含膝盖
	ImpactLocation    string  `json:"impact_location,omitempty"` // 落点描述
	ContextStrikes    *int    `json:"context_strikes,omitempty"` // 上下文中检测到的击打次数
	ContextFrames     *int    `json:"context_frames,omitempty"`  // 上下文帧数
}

// ClassifiedEvent 带分类结果的事件（对应 fall_events 表）
type ClassifiedEvent struct {
	EventID   string    `json:"event_id" db:"event_id"`
	SourceID  string    `json:"source_id" db:"source_id"`
	FPS       float64   `json:"fps" db:"fps"`
	Event     FallEvent `json:"event"`
	Label     string    `json:"label" db:"label"`       // knockdown, takedown, slip, unknown
	Summary   string    `json:"summary" db:"summary"`   // 摘要文本（分类器输入）
	Metadata  string    `json:"metadata" db:"metadata"` // JSONB
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
