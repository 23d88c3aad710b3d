package report

import (
	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/engine"
)

const (
	patientColumn = "Patient #"
	doctorColumn  = "Doctor Number"
)

// OutcomeRow is one patient's outcome for one indicator.
type OutcomeRow struct {
	RunID       string `parquet:"run_id"`
	Source      string `parquet:"source"`
	Set         string `parquet:"set"`
	EMR         string `parquet:"emr"`
	IndicatorID string `parquet:"indicator_id"`
	Row         int32  `parquet:"row"`
	Patient     string `parquet:"patient,optional"`
	Doctor      string `parquet:"doctor,optional"`
	Outcome     string `parquet:"outcome"`
}

// Outcomes flattens results into per-patient rows. datasets[i] must be the
// dataset results[i] was computed on, as returned by engine.RunJobs. Patient
// and doctor numbers stay empty for results without a dataset.
func Outcomes(results []engine.DatasetResult, datasets []*dataset.Dataset) []OutcomeRow {
	var out []OutcomeRow
	for i, dr := range results {
		var patients, doctors []string
		if i < len(datasets) && datasets[i] != nil {
			patients, _ = datasets[i].Column(patientColumn)
			doctors, _ = datasets[i].Column(doctorColumn)
		}
		for _, r := range dr.Indicators {
			for j, outcome := range r.Results {
				row := r.Rows[j]
				out = append(out, OutcomeRow{
					RunID:       dr.RunID,
					Source:      dr.Source,
					Set:         dr.Set,
					EMR:         dr.EMR,
					IndicatorID: r.IndicatorID,
					Row:         int32(row + 1),
					Patient:     cell(patients, row),
					Doctor:      cell(doctors, row),
					Outcome:     outcome.String(),
				})
			}
		}
	}
	return out
}

func cell(col []string, row int) string {
	if row < len(col) {
		return col[row]
	}
	return ""
}
