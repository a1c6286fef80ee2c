package detector

import (
	"testing"

	"wisefido-fall/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// 批量接口与逐帧接口输出一致
func TestDetectFallIntervals_MatchesStreaming(t *testing.T) {
	cases := map[string]struct {
		params Params
		frames []models.FrameDetections
	}{
		"single track fps3": {
			params: DefaultParams(3),
			frames: singleTrack(concat(repeat(0.20, 10), []float64{0.10}, repeat(0.20, 10), []float64{0.10})...),
		},
		"two people first trigger": {
			params: fps5Params(),
			frames: twoPeopleFrames(20, dropAt(10), dropAt(12)),
		},
		"two people all tracks": {
			params: func() Params {
				p := DefaultParams(3)
				p.ScanPolicy = ScanAllTracks
				return p
			}(),
			frames: twoPeopleFrames(20, dropAt(10), dropAt(12)),
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			batch, err := DetectFallIntervals(tc.frames, tc.params, nil)
			if err != nil {
				t.Fatalf("DetectFallIntervals: %v", err)
			}

			d, err := NewDetector(tc.params, nil, nil)
			if err != nil {
				t.Fatalf("NewDetector: %v", err)
			}
			var streamed []models.FallEvent
			for i, f := range tc.frames {
				res, err := d.Process(i, f)
				if err != nil {
					t.Fatalf("Process(%d): %v", i, err)
				}
				streamed = append(streamed, res.Events...)
			}
			streamed = append(streamed, d.Finish().Events...)
			SortEvents(streamed)

			if diff := cmp.Diff(batch, streamed, cmpopts.EquateApprox(0, 1e-12), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("events mismatch (-batch +streamed):\n%s", diff)
			}
		})
	}
}
