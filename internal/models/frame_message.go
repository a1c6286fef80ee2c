package models

import (
	"encoding/json"
	"fmt"
)

// FrameMessage 姿态估计服务发布的单帧消息（MQTT / Redis Streams / JSON-lines 共用）
type FrameMessage struct {
	SourceID   string          `json:"source_id"`
	FrameIndex int             `json:"frame_index"`
	FPS        float64         `json:"fps"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	Persons    FrameDetections `json:"persons"`
	Event      string          `json:"event,omitempty"` // 上游动作标注，如 strike
	EOS        bool            `json:"eos,omitempty"`   // 视频源结束
}

// FrameEventStrike 上游标注的击打帧
const FrameEventStrike = "strike"

// ParseFrameMessage 解析并校验帧消息
func ParseFrameMessage(data []byte) (*FrameMessage, error) {
	var msg FrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal frame message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Validate 校验必填字段
func (m *FrameMessage) Validate() error {
	if m.SourceID == "" {
		return fmt.Errorf("source_id is required")
	}
	if m.FrameIndex < 0 {
		return fmt.Errorf("frame_index must be non-negative, got %d", m.FrameIndex)
	}
	if m.EOS {
		return nil
	}
	if m.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %v", m.FPS)
	}
	return nil
}
