package consumer

import (
	"encoding/json"
	"testing"
	"time"

	"wisefido-fall/internal/detector"
	"wisefido-fall/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClassifiedEvent(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := models.FallEvent{StartTime: 2.0, EndTime: 2.2, StartFrame: 10, EndFrame: 11, TriggerCount: 2}

	ce := BuildClassifiedEvent("fight1", detector.DefaultParams(5), ev, now)

	_, err := uuid.Parse(ce.EventID)
	require.NoError(t, err)
	assert.Equal(t, "fight1", ce.SourceID)
	assert.Equal(t, 5.0, ce.FPS)
	assert.Equal(t, ev, ce.Event)
	assert.Equal(t, models.LabelUnknown, ce.Label)
	assert.Equal(t, "The fighter falls at 2.0s and stays grounded until 2.2s for 0.2 seconds.", ce.Summary)
	assert.Equal(t, now, ce.CreatedAt)
	assert.Equal(t, now, ce.UpdatedAt)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(ce.Metadata), &meta))
	assert.Equal(t, "first", meta["scan_policy"])
	assert.Equal(t, 10.0, meta["window_frames"])
	assert.Equal(t, true, meta["close_on_quiet"])
}

func TestBuildClassifiedEvent_UniqueIDs(t *testing.T) {
	p := detector.DefaultParams(5)
	a := BuildClassifiedEvent("fight1", p, models.FallEvent{}, time.Now())
	b := BuildClassifiedEvent("fight1", p, models.FallEvent{}, time.Now())
	assert.NotEqual(t, a.EventID, b.EventID)
}
