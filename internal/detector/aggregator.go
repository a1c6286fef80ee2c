package detector

import (
	"sort"

	"wisefido-fall/internal/models"
)

// frameGlobalKey 帧全局聚合使用的分组键
const frameGlobalKey = ""

// Firing 一帧中的一次触发
type Firing struct {
	Key      string // 分组键：帧全局聚合为空，按身份聚合为 track ID
	PoseInfo *models.FallPoseInfo
}

type triggerGroup struct {
	key      string
	frames   []int
	poseInfo *models.FallPoseInfo
}

func (g *triggerGroup) last() int {
	return g.frames[len(g.frames)-1]
}

// Aggregator 将触发帧聚合为跌倒区间
type Aggregator struct {
	fps          float64
	standWindow  int
	minDuration  float64
	maxDuration  float64
	closeOnQuiet bool

	groups map[string]*triggerGroup
}

// NewAggregator 创建聚合器
func NewAggregator(p Params) *Aggregator {
	return &Aggregator{
		fps:          p.FPS,
		standWindow:  p.StandWindow,
		minDuration:  p.MinDuration,
		maxDuration:  p.MaxDuration,
		closeOnQuiet: p.CloseOnQuiet,
		groups:       make(map[string]*triggerGroup),
	}
}

// Open 当前未关闭的分组数
func (a *Aggregator) Open() int {
	return len(a.groups)
}

// Observe 处理第 frame 帧的触发，返回本帧关闭并通过时长过滤的事件和被丢弃的候选数
//
// 触发：分组为空则以 [frame] 开始；与最后一个触发帧的间隔 <= standWindow 则追加；否则关闭并重新开始
// 无触发：closeOnQuiet 时立即关闭；否则间隔超过 standWindow 才关闭
func (a *Aggregator) Observe(frame int, firings []Firing) ([]models.FallEvent, int) {
	var events []models.FallEvent
	discarded := 0
	closeGroup := func(g *triggerGroup) {
		if ev, ok := a.finalize(g); ok {
			events = append(events, ev)
		} else {
			discarded++
		}
	}

	fired := make(map[string]bool, len(firings))
	for _, f := range firings {
		if fired[f.Key] {
			continue
		}
		fired[f.Key] = true

		g, ok := a.groups[f.Key]
		switch {
		case !ok:
			a.groups[f.Key] = &triggerGroup{key: f.Key, frames: []int{frame}, poseInfo: f.PoseInfo}
		case frame-g.last() <= a.standWindow:
			g.frames = append(g.frames, frame)
		default:
			closeGroup(g)
			a.groups[f.Key] = &triggerGroup{key: f.Key, frames: []int{frame}, poseInfo: f.PoseInfo}
		}
	}

	for _, key := range a.sortedKeys() {
		if fired[key] {
			continue
		}
		g := a.groups[key]
		if a.closeOnQuiet || frame-g.last() > a.standWindow {
			closeGroup(g)
			delete(a.groups, key)
		}
	}

	return events, discarded
}

// Flush 关闭所有未关闭的分组（流结束或调用方停止输入）
func (a *Aggregator) Flush() ([]models.FallEvent, int) {
	var events []models.FallEvent
	discarded := 0
	for _, key := range a.sortedKeys() {
		if ev, ok := a.finalize(a.groups[key]); ok {
			events = append(events, ev)
		} else {
			discarded++
		}
		delete(a.groups, key)
	}
	return events, discarded
}

// finalize 按时长上下限（包含）过滤候选区间，不满足的整体丢弃
func (a *Aggregator) finalize(g *triggerGroup) (models.FallEvent, bool) {
	start, end := g.frames[0], g.last()
	duration := float64(end-start+1) / a.fps
	if duration < a.minDuration || duration > a.maxDuration {
		return models.FallEvent{}, false
	}
	ev := models.FallEvent{
		StartTime:    float64(start) / a.fps,
		EndTime:      float64(end) / a.fps,
		StartFrame:   start,
		EndFrame:     end,
		TriggerCount: len(g.frames),
		TrackID:      g.key,
	}
	if g.poseInfo != nil {
		info := *g.poseInfo
		ev.PoseInfo = &info
	}
	return ev, true
}

func (a *Aggregator) sortedKeys() []string {
	keys := make([]string, 0, len(a.groups))
	for k := range a.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortEvents 按开始时间、结束时间、track 排序
func SortEvents(events []models.FallEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartTime != events[j].StartTime {
			return events[i].StartTime < events[j].StartTime
		}
		if events[i].EndTime != events[j].EndTime {
			return events[i].EndTime < events[j].EndTime
		}
		return events[i].TrackID < events[j].TrackID
	})
}
