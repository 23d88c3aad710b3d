// Package report renders evaluation results for people and downstream tools:
// dashboard summary rows, a formatted workbook, a per-patient Parquet file
// and a plain text table for the CLI.
package report

import (
	"math"

	"github.com/cdreport/cdreport/internal/engine"
)

// Row is one indicator line on the dashboard.
type Row struct {
	IndicatorID string   `json:"indicator_id"`
	Label       string   `json:"label"`
	Tooltip     string   `json:"tooltip"`
	Passed      int      `json:"passed"`
	Total       int      `json:"total"`
	Percent     *float64 `json:"percent,omitempty"`
	Benchmark   *float64 `json:"benchmark,omitempty"`
	Goal        *float64 `json:"goal,omitempty"`
}

// Summary is the dashboard view of one dataset.
type Summary struct {
	RunID    string `json:"run_id"`
	Source   string `json:"source"`
	Set      string `json:"set"`
	EMR      string `json:"emr"`
	RowCount int    `json:"row_count"`
	Rows     []Row  `json:"rows"`
}

// Summarize turns engine results into dashboard summaries, keeping order.
func Summarize(results []engine.DatasetResult) []Summary {
	out := make([]Summary, 0, len(results))
	for _, dr := range results {
		s := Summary{
			RunID:    dr.RunID,
			Source:   dr.Source,
			Set:      dr.Set,
			EMR:      dr.EMR,
			RowCount: dr.RowCount,
			Rows:     make([]Row, 0, len(dr.Indicators)),
		}
		for _, r := range dr.Indicators {
			s.Rows = append(s.Rows, Row{
				IndicatorID: r.IndicatorID,
				Label:       r.Label,
				Tooltip:     r.Tooltip,
				Passed:      r.Passed,
				Total:       r.Total,
				Percent:     Percent(r.Passed, r.Total),
				Benchmark:   scaled(r.Benchmark),
				Goal:        scaled(r.Goal),
			})
		}
		out = append(out, s)
	}
	return out
}

// Percent is passed/total as a percentage rounded to one decimal. It is nil
// when nothing was counted.
func Percent(passed, total int) *float64 {
	if total <= 0 {
		return nil
	}
	v := math.Round(float64(passed)/float64(total)*1000) / 10
	return &v
}

// scaled converts a benchmark fraction to a percentage.
func scaled(v *float64) *float64 {
	if v == nil {
		return nil
	}
	p := math.Round(*v*1000) / 10
	return &p
}
