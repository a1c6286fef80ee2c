package detector

import (
	"fmt"

	"wisefido-fall/internal/models"
)

// Binding 当前帧第 i 个人绑定的 track
type Binding struct {
	State   *TrackState
	Matched bool // false 表示新建的 track
}

// trackPlan 一帧的匹配结果，Commit 前不修改 Tracker
type trackPlan struct {
	curr     models.FrameDetections
	centers  []models.Point
	bindings []Binding
	nextID   int
	reset    bool // 丢弃了上一帧的 track
	tolerate bool // 空帧被容忍，保留上一帧
}

// Tracker 帧间身份关联（单跳，无运动模型、无重识别）
type Tracker struct {
	params     Params
	associator Associator

	prevCenters []models.Point
	tracks      []*TrackState // 与上一帧检测结果按索引对齐
	missed      int           // 连续被容忍的空帧数
	nextID      int
}

// NewTracker 创建 Tracker，associator 为 nil 时使用贪心匹配
func NewTracker(params Params, associator Associator) *Tracker {
	if associator == nil {
		associator = GreedyAssociator{}
	}
	return &Tracker{
		params:     params,
		associator: associator,
	}
}

// Tracks 当前存活的 track 数量
func (t *Tracker) Tracks() int {
	return len(t.tracks)
}

func (t *Tracker) plan(curr models.FrameDetections) *trackPlan {
	pl := &trackPlan{
		curr:   curr,
		nextID: t.nextID,
	}

	if len(curr) == 0 {
		if len(t.tracks) > 0 && t.missed < t.params.EmptyFrameTolerance {
			pl.tolerate = true
			return pl
		}
		pl.reset = len(t.tracks) > 0
		return pl
	}

	pl.centers = make([]models.Point, len(curr))
	for i, pose := range curr {
		pl.centers[i] = Center(pose, t.params.CenterVisibility)
	}
	pl.bindings = make([]Binding, len(curr))

	var assignments []int
	if len(t.tracks) > 0 {
		assignments = t.associator.Associate(t.prevCenters, pl.centers)
	}

	for i := range curr {
		if assignments != nil && assignments[i] >= 0 && assignments[i] < len(t.tracks) {
			pl.bindings[i] = Binding{State: t.tracks[assignments[i]], Matched: true}
			continue
		}
		pl.nextID++
		pl.bindings[i] = Binding{State: newTrackState(fmt.Sprintf("t%d", pl.nextID), t.params.StandWindow)}
	}
	return pl
}

func (t *Tracker) commit(pl *trackPlan) {
	t.nextID = pl.nextID
	if pl.tolerate {
		t.missed++
		return
	}
	t.missed = 0
	t.prevCenters = pl.centers
	t.tracks = make([]*TrackState, len(pl.bindings))
	for i, b := range pl.bindings {
		t.tracks[i] = b.State
	}
}

// Advance 关联当前帧并更新内部状态，返回每个人绑定的 track
// 上一帧或当前帧为空时所有 track 重置（EmptyFrameTolerance 允许的空帧除外）
func (t *Tracker) Advance(curr models.FrameDetections) []Binding {
	pl := t.plan(curr)
	t.commit(pl)
	return pl.bindings
}
