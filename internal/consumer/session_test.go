package consumer

import (
	"testing"
	"time"

	"wisefido-fall/internal/models"

	"github.com/stretchr/testify/assert"
)

func at(index int) frame {
	return frame{index: index}
}

func indexes(frames []frame) []int {
	out := make([]int, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.index)
	}
	return out
}

func gaps(frames []frame) []int {
	var out []int
	for _, f := range frames {
		if f.gap {
			out = append(out, f.index)
		}
	}
	return out
}

func TestSession_InOrderRelease(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 10, 100, now)

	ready, status := s.push(frame{index: 0, persons: models.FrameDetections{}}, now)
	assert.Equal(t, pushAccepted, status)
	assert.Equal(t, []int{0}, indexes(ready))

	ready, status = s.push(at(1), now)
	assert.Equal(t, pushAccepted, status)
	assert.Equal(t, []int{1}, indexes(ready))
	assert.Equal(t, 2, s.next)
}

func TestSession_ReordersWithinWindow(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 5, 10, 100, now)

	ready, _ := s.push(at(5), now)
	assert.Equal(t, []int{5}, indexes(ready))

	ready, _ = s.push(at(7), now)
	assert.Empty(t, ready)

	ready, _ = s.push(at(6), now)
	assert.Equal(t, []int{6, 7}, indexes(ready))
	assert.Empty(t, gaps(ready))
}

func TestSession_WindowOverflowFillsGap(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 2, 100, now)

	s.push(at(0), now)
	ready, _ := s.push(at(2), now)
	assert.Empty(t, ready)
	ready, _ = s.push(at(3), now)
	assert.Empty(t, ready)

	// 缓冲超过 2 帧，缺失的第 1 帧按空帧释放
	ready, _ = s.push(at(4), now)
	assert.Equal(t, []int{1, 2, 3, 4}, indexes(ready))
	assert.Equal(t, []int{1}, gaps(ready))

	// 第 1 帧迟到，丢弃
	_, status := s.push(at(1), now)
	assert.Equal(t, pushLate, status)
}

func TestSession_DuplicatePendingFrame(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 10, 100, now)
	s.push(at(0), now)

	_, status := s.push(at(3), now)
	assert.Equal(t, pushAccepted, status)
	_, status = s.push(at(3), now)
	assert.Equal(t, pushLate, status)
}

func TestSession_DrainFillsGaps(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 6, 10, 100, now)
	s.push(at(7), now)
	s.push(at(9), now)

	ready := s.drain()
	assert.Equal(t, []int{6, 7, 8, 9}, indexes(ready))
	assert.Equal(t, []int{6, 8}, gaps(ready))
	assert.Empty(t, s.pending)
	assert.Empty(t, s.drain())
}

func TestSession_Idle(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 10, 100, now)

	assert.False(t, s.idle(now.Add(30*time.Second), time.Minute))
	assert.True(t, s.idle(now.Add(61*time.Second), time.Minute))
	assert.False(t, s.idle(now.Add(time.Hour), 0))

	s.push(at(0), now.Add(50*time.Second))
	assert.False(t, s.idle(now.Add(61*time.Second), time.Minute))
}

func TestSession_GapOverflow(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 50, 100, now)
	s.push(at(0), now)

	// 远超上限的跳变不进入缓冲，也不补空帧
	ready, status := s.push(at(3_000_000), now.Add(time.Second))
	assert.Equal(t, pushOverflow, status)
	assert.Empty(t, ready)
	assert.Empty(t, s.pending)
	assert.Equal(t, now, s.lastSeen)
	assert.Empty(t, s.drain())

	// 上限以内的跳变正常缓存，drain 补齐的空帧不超过上限
	_, status = s.push(at(101), now)
	assert.Equal(t, pushAccepted, status)
	ready = s.drain()
	assert.Len(t, ready, 101)
	assert.Len(t, gaps(ready), 100)

	// 向后跳变同样视为重建
	_, status = s.push(at(0), now)
	assert.Equal(t, pushOverflow, status)
}

func TestSession_KeepsFrameEvent(t *testing.T) {
	now := time.Now()
	s := newSession("fight1", 5, nil, 0, 10, 100, now)

	ready, _ := s.push(frame{index: 1, event: models.FrameEventStrike}, now)
	assert.Empty(t, ready)
	ready, _ = s.push(at(0), now)
	assert.Equal(t, []int{0, 1}, indexes(ready))
	assert.Equal(t, models.FrameEventStrike, ready[1].event)
}
