package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet  = "Summary"
	patientsSheet = "Patients"
)

var summaryHeader = []string{"Source", "Set", "EMR", "Indicator", "Passed", "Total", "Percent", "Benchmark %", "Goal %"}

var patientsHeader = []string{"Source", "Row", "Patient #", "Doctor Number", "Indicator", "Outcome"}

// WriteWorkbook renders the summaries and, when given, the per-patient
// outcomes as an xlsx workbook.
func WriteWorkbook(w io.Writer, summaries []Summary, outcomes []OutcomeRow) error {
	data, err := BuildWorkbook(summaries, outcomes)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// BuildWorkbook returns the workbook bytes.
func BuildWorkbook(summaries []Summary, outcomes []OutcomeRow) ([]byte, error) {
	f := excelize.NewFile()

	if _, err := f.NewSheet(summarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(summarySheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("find sheet: %w", err)
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
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	var rows [][]any
	for _, s := range summaries {
		for _, r := range s.Rows {
			rows = append(rows, []any{s.Source, s.Set, s.EMR, r.Label, r.Passed, r.Total, optional(r.Percent), optional(r.Benchmark), optional(r.Goal)})
		}
	}
	if err := writeSheet(f, summarySheet, summaryHeader, []float64{20, 18, 8, 60, 10, 10, 10, 14, 10}, headerStyle, rows); err != nil {
		f.Close()
		return nil, err
	}

	if len(outcomes) > 0 {
		if _, err := f.NewSheet(patientsSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet: %w", err)
		}
		rows = rows[:0]
		for _, o := range outcomes {
			rows = append(rows, []any{o.Source, o.Row, o.Patient, o.Doctor, o.IndicatorID, o.Outcome})
		}
		if err := writeSheet(f, patientsSheet, patientsHeader, []float64{20, 8, 14, 14, 30, 10}, headerStyle, rows); err != nil {
			f.Close()
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, header []string, widths []float64, headerStyle int, rows [][]any) error {
	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, name); err != nil {
			return fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	for i, values := range rows {
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
