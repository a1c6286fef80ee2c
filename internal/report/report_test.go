package report

import (
	"bytes"
	"testing"

	"wisefido-fall/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerate(t *testing.T) {
	rows := []Row{
		{
			SourceID: "fight1",
			Event: models.FallEvent{
				StartTime: 2, EndTime: 2.5, StartFrame: 10, EndFrame: 12, TriggerCount: 3,
				PoseInfo: &models.FallPoseInfo{FallVelocity: 0.5, ImpactLocation: "the bottom of the frame (y=0.80)"},
			},
			Label:   models.LabelKnockdown,
			Summary: "The fighter falls at 2.0s",
		},
		{
			SourceID: "fight2",
			Event:    models.FallEvent{StartTime: 7, EndTime: 8, TrackID: "t3"},
		},
	}

	data, err := Generate(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())
	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Header, got[0])
	assert.Equal(t, "fight1", got[1][0])
	assert.Equal(t, "10", got[1][5])
	assert.Equal(t, "0.5", got[1][8])
	assert.Equal(t, "the bottom of the frame (y=0.80)", got[1][9])
	assert.Equal(t, "knockdown", got[1][10])

	assert.Equal(t, "t3", got[2][1])
	assert.Equal(t, "1", got[2][4])
	assert.Equal(t, "unknown", got[2][10])
}

func TestGenerate_Empty(t *testing.T) {
	data, err := Generate(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRowsFromClassified(t *testing.T) {
	rows := RowsFromClassified([]*models.ClassifiedEvent{
		{SourceID: "fight1", Label: models.LabelSlip, Summary: "s", Event: models.FallEvent{StartFrame: 4}},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "fight1", rows[0].SourceID)
	assert.Equal(t, 4, rows[0].Event.StartFrame)
	assert.Equal(t, models.LabelSlip, rows[0].Label)
}
