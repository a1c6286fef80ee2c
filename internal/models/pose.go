package models

import (
	"encoding/json"
	"fmt"
)

// MediaPipe Pose 关键点索引（33 个标准人体关键点）
// 检测核心只使用肩、髋，膝盖用于落点估计
const (
	LandmarkLeftShoulder  = 11
	LandmarkRightShoulder = 12
	LandmarkLeftHip       = 23
	LandmarkRightHip      = 24
	LandmarkLeftKnee      = 25
	LandmarkRightKnee     = 26
	LandmarkCount         = 33
)

// Keypoint 单个关键点（x, y 为图像归一化坐标 [0,1]，Visibility 为置信度 [0,1]）
type Keypoint struct {
	X          float64
	Y          float64
	Visibility float64
}

// MarshalJSON 序列化为 [x, y, visibility] 三元组
func (k Keypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{k.X, k.Y, k.Visibility})
}

// UnmarshalJSON 从 [x, y, visibility] 三元组反序列化
func (k *Keypoint) UnmarshalJSON(data []byte) error {
	var triple []float64
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("failed to unmarshal keypoint: %w", err)
	}
	if len(triple) != 3 {
		return fmt.Errorf("keypoint must have 3 values, got %d", len(triple))
	}
	k.X, k.Y, k.Visibility = triple[0], triple[1], triple[2]
	return nil
}

// PersonPose 一个人的姿态（按关键点索引排列）
type PersonPose []Keypoint

// FrameDetections 一帧内的所有姿态检测结果
// 顺序由检测器决定，不代表跨帧身份
type FrameDetections []PersonPose

// Point 二维坐标
type Point struct {
	X float64
	Y float64
}
