// Package detector 基于逐帧姿态检测结果识别跌倒区间
//
// 处理流程（严格按帧顺序，单写者）：
//   - Tracker：将当前帧的人与上一帧的人按身体中心距离贪心匹配，绑定 TrackState
//   - Separation：计算每个人的肩髋垂直差（越小越接近水平，即倒地）
//   - TrackState.Step：站立滞回计数 + 触发判断
//   - Aggregator：把触发帧聚合为区间，按时长上下限过滤
//
// 已知限制（保持与原有行为一致，见 DESIGN.md）：
//   - 可见关键点不足时身体中心为 (0,0)，可能导致错误匹配
//   - 任一相邻帧没有检测结果时所有 track 状态被丢弃
//   - 默认每帧最多一个 track 触发（ScanFirstTrigger）
//   - 孤立的单帧触发时长为 1/fps，通常低于 min_duration 被丢弃
//
// Detector 不是并发安全的，每个视频源使用一个实例。
package detector
