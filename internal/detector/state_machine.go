package detector

// TrackState 单个 track 的跌倒状态（历史肩髋差 + 站立计数）
// 只由所属的 Detector 修改
type TrackState struct {
	id              string
	history         []float64 // 最近 window 帧的肩髋差，FIFO
	standingCounter int       // [0, standWindow]
}

// StepResult 一次状态更新的结果
type StepResult struct {
	Fired          bool
	PeakSeparation float64 // 触发时历史窗口中的最大值
	PeakAge        int     // 触发帧距离峰值所在帧的帧数（>= 1）
}

func newTrackState(id string, standWindow int) *TrackState {
	return &TrackState{
		id:              id,
		standingCounter: standWindow,
	}
}

// ID track 标识（仅在当前 Detector 内有效）
func (s *TrackState) ID() string {
	return s.id
}

// StandingCounter 当前站立计数
func (s *TrackState) StandingCounter() int {
	return s.standingCounter
}

// History 历史肩髋差副本（从旧到新）
func (s *TrackState) History() []float64 {
	out := make([]float64, len(s.history))
	copy(out, s.history)
	return out
}

// Step 用当前帧的肩髋差更新状态，返回是否触发
//
// 1. diff > align 站立计数 +1（上限 standWindow），否则清零
// 2. 计数达到 standWindow 才允许触发
// 3. 历史中存在 > align 的值且 diff < drop 时触发，计数清零，本帧不写入历史
// 4. 未触发时追加 diff，历史满 window 时淘汰最旧值
func (s *TrackState) Step(diff float64, p Params) StepResult {
	if diff > p.AlignThreshold {
		s.standingCounter++
		if s.standingCounter > p.StandWindow {
			s.standingCounter = p.StandWindow
		}
	} else {
		s.standingCounter = 0
	}

	if s.standingCounter >= p.StandWindow && diff < p.DropThreshold {
		if peakIdx := s.peakAbove(p.AlignThreshold); peakIdx >= 0 {
			s.standingCounter = 0
			return StepResult{
				Fired:          true,
				PeakSeparation: s.history[peakIdx],
				PeakAge:        len(s.history) - peakIdx,
			}
		}
	}

	if len(s.history) >= p.Window {
		s.history = append(s.history[:0], s.history[len(s.history)-p.Window+1:]...)
	}
	s.history = append(s.history, diff)
	return StepResult{}
}

// peakAbove 历史中最大值的索引，最大值不超过阈值时返回 -1
func (s *TrackState) peakAbove(threshold float64) int {
	peak := -1
	for i, d := range s.history {
		if d > threshold && (peak < 0 || d >= s.history[peak]) {
			peak = i
		}
	}
	return peak
}
