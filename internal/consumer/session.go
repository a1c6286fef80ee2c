package consumer

import (
	"time"

	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/models"
)

// frame 按帧号释放给检测器的一帧；gap 表示缺失帧，以空检测输入
type frame struct {
	index   int
	persons models.FrameDetections
	event   string // 上游标注
	gap     bool
}

// pushStatus push 的处理结果
type pushStatus int

const (
	pushAccepted pushStatus = iota
	pushLate                // 迟到或重复，丢弃
	pushOverflow            // 帧号跳变超过 maxGap，需要重建会话
)

// session 单个视频源的检测状态与乱序缓冲
// 只由消费循环所在的 goroutine 访问
type session struct {
	sourceID string
	fps      float64
	det      *detector.Detector
	strikes  *detector.StrikeContext
	window   int // 乱序缓冲上限
	maxGap   int // 与 next 的最大帧号距离，缓存帧始终落在 [next, next+maxGap]

	next     int // 下一个释放的帧号
	pending  map[int]frame
	lastSeen time.Time
}

func newSession(sourceID string, fps float64, det *detector.Detector, firstIndex, window, maxGap int, now time.Time) *session {
	return &session{
		sourceID: sourceID,
		fps:      fps,
		det:      det,
		window:   window,
		maxGap:   maxGap,
		next:     firstIndex,
		pending:  make(map[int]frame),
		lastSeen: now,
	}
}

// push 缓存一帧并返回可以按序释放的帧
// 帧号小于已释放位置时返回 pushLate；与 next 相差超过 maxGap 时返回 pushOverflow，会话状态不变
func (s *session) push(f frame, now time.Time) ([]frame, pushStatus) {
	if f.index-s.next > s.maxGap || s.next-f.index > s.maxGap {
		return nil, pushOverflow
	}
	s.lastSeen = now
	if f.index < s.next {
		return nil, pushLate
	}
	if _, dup := s.pending[f.index]; dup {
		return nil, pushLate
	}
	f.gap = false
	s.pending[f.index] = f

	ready := s.release()
	for len(s.pending) > s.window {
		// 缓冲已满，队首缺失的帧视为检测器未检出
		ready = append(ready, frame{index: s.next, gap: true})
		s.next++
		ready = append(ready, s.release()...)
	}
	return ready, pushAccepted
}

// release 释放从 next 开始连续的帧
func (s *session) release() []frame {
	var ready []frame
	for {
		f, ok := s.pending[s.next]
		if !ok {
			return ready
		}
		delete(s.pending, s.next)
		ready = append(ready, f)
		s.next++
	}
}

// drain 视频源结束时按序释放所有缓存帧，中间缺失的帧补为空帧
func (s *session) drain() []frame {
	var ready []frame
	for len(s.pending) > 0 {
		if _, ok := s.pending[s.next]; !ok {
			ready = append(ready, frame{index: s.next, gap: true})
			s.next++
			continue
		}
		ready = append(ready, s.release()...)
	}
	return ready
}

func (s *session) idle(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(s.lastSeen) > timeout
}
