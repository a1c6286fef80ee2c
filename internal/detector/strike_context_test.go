package detector

import (
	"testing"

	"wisefido-fall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventAt(start int) models.FallEvent {
	return models.FallEvent{StartFrame: start, EndFrame: start + 2, PoseInfo: &models.FallPoseInfo{PeakSeparation: 0.2}}
}

func TestStrikeContext_CountsStrikesBeforeStart(t *testing.T) {
	c := NewStrikeContext(fps5Params(), 10)
	for i := 0; i < 30; i++ {
		tag := ""
		if i == 12 || i == 15 || i == 19 || i == 20 || i == 25 {
			tag = models.FrameEventStrike
		}
		c.Record(i, tag)
	}

	ev := eventAt(20)
	orig := ev.PoseInfo
	c.Annotate(&ev)

	// [10, 20) 内的 12、15、19；开始帧本身不计入
	require.NotNil(t, ev.PoseInfo.ContextStrikes)
	assert.Equal(t, 3, *ev.PoseInfo.ContextStrikes)
	assert.Equal(t, 10, *ev.PoseInfo.ContextFrames)
	assert.InDelta(t, 0.2, ev.PoseInfo.PeakSeparation, 1e-12)
	assert.Nil(t, orig.ContextStrikes)
}

func TestStrikeContext_ClampsToFirstFrame(t *testing.T) {
	c := NewStrikeContext(fps5Params(), 10)
	for i := 100; i < 106; i++ {
		c.Record(i, models.FrameEventStrike)
	}

	ev := eventAt(104)
	c.Annotate(&ev)
	assert.Equal(t, 4, *ev.PoseInfo.ContextStrikes)
	assert.Equal(t, 4, *ev.PoseInfo.ContextFrames)
}

func TestStrikeContext_PrunesOldStrikes(t *testing.T) {
	c := NewStrikeContext(fps5Params(), 10)
	c.Record(0, models.FrameEventStrike)
	for i := 1; i < 1000; i++ {
		c.Record(i, "")
	}
	assert.Empty(t, c.strikes)
}

func TestStrikeContext_Disabled(t *testing.T) {
	c := NewStrikeContext(fps5Params(), 0)
	assert.Nil(t, c)
	c.Record(0, models.FrameEventStrike)

	ev := eventAt(5)
	c.Annotate(&ev)
	assert.Nil(t, ev.PoseInfo.ContextStrikes)
}

func TestStrikeContext_NoPoseInfo(t *testing.T) {
	c := NewStrikeContext(fps5Params(), 10)
	c.Record(0, models.FrameEventStrike)

	ev := models.FallEvent{StartFrame: 3}
	c.Annotate(&ev)
	assert.Nil(t, ev.PoseInfo)
}
