package httpapi

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/burnspe2144/env-reporting-backend/internal/domain"

	json "github.com/goccy/go-json"
	"github.com/xuri/excelize/v2"
)

const historySheet = "History"

// HistoryExportHeader 历史导出表头
var HistoryExportHeader = []string{
	"History ID",
	"Action",
	"Modified By",
	"Modified At",
	"Feature ID",
	"Parent Layer ID",
	"Layer Name",
	"Layer Type",
	"Project Number",
	"Geometry Type",
	"Geometry",
	"Properties",
}

var historyColumnWidths = []float64{12, 10, 38, 22, 12, 38, 25, 15, 18, 18, 60, 40}

// GenerateHistoryExport 生成历史记录 Excel；entries 为空时只有表头
func GenerateHistoryExport(entries []*domain.HistoryEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]any, len(HistoryExportHeader))
	for i, h := range HistoryExportHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(HistoryExportHeader), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(historySheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range historyColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(historySheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	// 从第2行开始写数据
	for i, e := range entries {
		row, err := historyRow(e)
		if err != nil {
			return nil, err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}

func historyRow(e *domain.HistoryEntry) ([]any, error) {
	snap := e.Snapshot
	geomType, geomJSON := "", ""
	if snap.Geometry != nil {
		b, err := json.Marshal(snap.Geometry)
		if err != nil {
			return nil, fmt.Errorf("failed to encode geometry of history %d: %w", e.ID, err)
		}
		geomJSON = string(b)
		if snap.Geometry.Coordinates != nil {
			geomType = snap.Geometry.Coordinates.GeoJSONType()
		}
	}
	props := ""
	if len(snap.Properties) > 0 {
		b, err := json.Marshal(snap.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to encode properties of history %d: %w", e.ID, err)
		}
		props = string(b)
	}
	return []any{
		strconv.FormatInt(e.ID, 10),
		string(e.Action),
		e.ModifiedBy,
		e.ModifiedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(snap.ID, 10),
		snap.ParentLayerID,
		snap.LayerName,
		string(snap.LayerType),
		snap.ProjectNumber,
		geomType,
		geomJSON,
		props,
	}, nil
}
