package detector

import (
	"wisefido-fall/internal/models"
)

// StrikeContext 记录上游标注为 strike 的帧，事件输出时统计开始帧之前 frames 帧内的击打次数
// 帧号必须按处理顺序递增传入；nil 或 frames <= 0 时不做任何标注
type StrikeContext struct {
	frames int
	keep   int // 可输出事件的开始帧距当前帧的最大距离加上 frames

	first   int
	seen    bool
	strikes []int // 升序
}

// NewStrikeContext 创建击打上下文
func NewStrikeContext(params Params, frames int) *StrikeContext {
	if frames <= 0 {
		return nil
	}
	// 事件在最后一次触发后至多 StandWindow+1 帧关闭，时长不超过 MaxDuration
	keep := frames + FramesFromSeconds(params.MaxDuration, params.FPS) + params.StandWindow + 1
	return &StrikeContext{frames: frames, keep: keep}
}

// Record 记录一帧的上游标注（补齐的空帧传空字符串）
func (c *StrikeContext) Record(index int, tag string) {
	if c == nil {
		return
	}
	if !c.seen {
		c.first = index
		c.seen = true
	}
	if tag == models.FrameEventStrike {
		c.strikes = append(c.strikes, index)
	}

	cut := 0
	for cut < len(c.strikes) && c.strikes[cut] < index-c.keep {
		cut++
	}
	if cut > 0 {
		c.strikes = append(c.strikes[:0], c.strikes[cut:]...)
	}
}

// Annotate 为事件写入 [start-frames, start) 内的击打次数与实际统计帧数
// PoseInfo 复制后再修改，不影响检测器保存的事件
func (c *StrikeContext) Annotate(ev *models.FallEvent) {
	if c == nil || !c.seen || ev.PoseInfo == nil {
		return
	}
	lo := ev.StartFrame - c.frames
	if lo < c.first {
		lo = c.first
	}
	strikes := 0
	for _, idx := range c.strikes {
		if idx >= lo && idx < ev.StartFrame {
			strikes++
		}
	}
	frames := ev.StartFrame - lo
	if frames < 0 {
		frames = 0
	}

	info := *ev.PoseInfo
	info.ContextStrikes = &strikes
	info.ContextFrames = &frames
	ev.PoseInfo = &info
}
