package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackState_FreshStateIsEligible(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)

	assert.Equal(t, p.StandWindow, s.StandingCounter())
	assert.Empty(t, s.History())

	// 历史为空，不会触发
	res := s.Step(0.10, p)
	assert.False(t, res.Fired)
	assert.Equal(t, []float64{0.10}, s.History())
}

func TestTrackState_StandingCounterCappedAndReset(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", 0)

	for i := 0; i < p.StandWindow+5; i++ {
		s.Step(0.20, p)
	}
	assert.Equal(t, p.StandWindow, s.StandingCounter())

	s.Step(0.05, p)
	assert.Equal(t, 0, s.StandingCounter())

	s.Step(0.20, p)
	assert.Equal(t, 1, s.StandingCounter())
}

func TestTrackState_AlignThresholdIsStrict(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)

	s.Step(p.AlignThreshold, p)
	assert.Equal(t, 0, s.StandingCounter())
}

func TestTrackState_TriggerInDropBand(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)
	s.Step(0.20, p)

	res := s.Step(0.10, p)
	assert.True(t, res.Fired)
	assert.InDelta(t, 0.20, res.PeakSeparation, 1e-12)
	assert.Equal(t, 1, res.PeakAge)
	assert.Equal(t, 0, s.StandingCounter())
	// 触发帧不写入历史
	assert.Equal(t, []float64{0.20}, s.History())
}

func TestTrackState_DropBelowAlignResetsBeforeGate(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)
	s.Step(0.20, p)

	// 站立计数先清零，门限不满足，不触发
	res := s.Step(0.05, p)
	assert.False(t, res.Fired)
	assert.Equal(t, []float64{0.20, 0.05}, s.History())
}

func TestTrackState_DropThresholdIsStrict(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)
	s.Step(0.20, p)

	res := s.Step(p.DropThreshold, p)
	assert.False(t, res.Fired)
}

func TestTrackState_IneligibleAfterTrigger(t *testing.T) {
	p := fps5Params()
	s := newTrackState("t1", p.StandWindow)
	s.Step(0.20, p)
	assert.True(t, s.Step(0.10, p).Fired)

	// 重新站满 standWindow 帧之前不再触发
	for i := 0; i < p.StandWindow-1; i++ {
		assert.False(t, s.Step(0.10, p).Fired, "frame %d", i)
	}
	assert.Equal(t, p.StandWindow-1, s.StandingCounter())
	assert.True(t, s.Step(0.10, p).Fired)
}

func TestTrackState_HistoryEvictsOldest(t *testing.T) {
	p := fps5Params()
	p.Window = 3
	s := newTrackState("t1", 0)

	for _, d := range []float64{0.01, 0.02, 0.03, 0.04, 0.05} {
		s.Step(d, p)
	}
	assert.Equal(t, []float64{0.03, 0.04, 0.05}, s.History())
}

func TestTrackState_PeakOutsideWindowDoesNotTrigger(t *testing.T) {
	p := fps5Params()
	p.Window = 2
	p.StandWindow = 1
	s := newTrackState("t1", 0)

	s.Step(0.30, p)
	s.Step(0.05, p) // 计数清零，不会触发
	s.Step(0.05, p) // 0.30 被淘汰
	assert.Equal(t, []float64{0.05, 0.05}, s.History())

	assert.False(t, s.Step(0.10, p).Fired)
}

func TestTrackState_PeakAgeUsesLatestMaximum(t *testing.T) {
	p := fps5Params()
	p.StandWindow = 0
	s := newTrackState("t1", 0)

	for _, d := range []float64{0.30, 0.20, 0.30, 0.16} {
		s.Step(d, p)
	}

	res := s.Step(0.10, p)
	assert.True(t, res.Fired)
	assert.InDelta(t, 0.30, res.PeakSeparation, 1e-12)
	assert.Equal(t, 2, res.PeakAge)
}
