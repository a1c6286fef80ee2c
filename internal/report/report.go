// Package report 导出跌倒事件 Excel 报表
package report

import (
	"bytes"
	"fmt"

	"wisefido-fall/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Fall Events"

// Header 报表表头
var Header = []string{
	"Source",
	"Track",
	"Start (s)",
	"End (s)",
	"Duration (s)",
	"Start Frame",
	"End Frame",
	"Triggers",
	"Fall Velocity",
	"Impact Location",
	"Label",
	"Summary",
}

var columnWidths = []float64{14, 8, 10, 10, 12, 12, 12, 10, 14, 36, 12, 80}

// Row 报表中的一行
type Row struct {
	SourceID string
	Event    models.FallEvent
	Label    string
	Summary  string
}

// RowsFromClassified 由已分类事件生成报表行
func RowsFromClassified(events []*models.ClassifiedEvent) []Row {
	rows := make([]Row, 0, len(events))
	for _, ev := range events {
		rows = append(rows, Row{
			SourceID: ev.SourceID,
			Event:    ev.Event,
			Label:    ev.Label,
			Summary:  ev.Summary,
		})
	}
	return rows
}

// Generate 生成 .xlsx 文件内容
func Generate(rows []Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &Header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Header))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, w := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		values := rowValues(r)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func rowValues(r Row) []interface{} {
	ev := r.Event
	var velocity interface{}
	impact := ""
	if ev.PoseInfo != nil {
		velocity = ev.PoseInfo.FallVelocity
		impact = ev.PoseInfo.ImpactLocation
	}
	label := r.Label
	if label == "" {
		label = models.LabelUnknown
	}
	return []interface{}{
		r.SourceID,
		ev.TrackID,
		ev.StartTime,
		ev.EndTime,
		ev.Duration(),
		ev.StartFrame,
		ev.EndFrame,
		ev.TriggerCount,
		velocity,
		impact,
		label,
		r.Summary,
	}
}
