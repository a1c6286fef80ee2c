package consumer

import (
	"encoding/json"
	"time"

	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/models"
	"wisefido-fall/internal/summarizer"

	"github.com/google/uuid"
)

// eventMetadata 写入 fall_events.metadata 的检测参数快照
type eventMetadata struct {
	ScanPolicy          string  `json:"scan_policy"`
	WindowFrames        int     `json:"window_frames"`
	StandWindowFrames   int     `json:"stand_window_frames"`
	AlignThreshold      float64 `json:"align_threshold"`
	DropThreshold       float64 `json:"drop_threshold"`
	CloseOnQuiet        bool    `json:"close_on_quiet"`
	EmptyFrameTolerance int     `json:"empty_frame_tolerance"`
}

// BuildClassifiedEvent 为检测到的区间生成待分类事件（标签初始为 unknown）
func BuildClassifiedEvent(sourceID string, params detector.Params, ev models.FallEvent, now time.Time) *models.ClassifiedEvent {
	metadata, err := json.Marshal(eventMetadata{
		ScanPolicy:          string(params.ScanPolicy),
		WindowFrames:        params.Window,
		StandWindowFrames:   params.StandWindow,
		AlignThreshold:      params.AlignThreshold,
		DropThreshold:       params.DropThreshold,
		CloseOnQuiet:        params.CloseOnQuiet,
		EmptyFrameTolerance: params.EmptyFrameTolerance,
	})
	if err != nil {
		metadata = []byte("{}")
	}

	return &models.ClassifiedEvent{
		EventID:   uuid.New().String(),
		SourceID:  sourceID,
		FPS:       params.FPS,
		Event:     ev,
		Label:     models.LabelUnknown,
		Summary:   summarizer.Summarize(ev),
		Metadata:  string(metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
