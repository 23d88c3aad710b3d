// Package engine evaluates an indicator set against loaded registry exports
// and aggregates the per-patient outcomes into pass/total counts.
package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/indicator"
)

const (
	rosteredColumn         = "Rostered"
	filteredPatientsColumn = "Filtered Patients"
)

// Result is one indicator's outcome over one dataset. Results and Rows are
// aligned: Results[i] is the outcome for dataset row Rows[i]. Rows removed by
// the roster filter appear in neither.
type Result struct {
	IndicatorID   string               `json:"indicator_id"`
	Label         string               `json:"label"`
	Tooltip       string               `json:"tooltip"`
	Results       []indicator.TriState `json:"results"`
	Rows          []int                `json:"rows"`
	Passed        int                  `json:"passed"`
	Total         int                  `json:"total"`
	Excluded      int                  `json:"excluded"`
	NotApplicable int                  `json:"not_applicable"`
	Benchmark     *float64             `json:"benchmark,omitempty"`
	Goal          *float64             `json:"goal,omitempty"`
}

// DatasetResult holds every evaluated indicator for one dataset, in the
// set's declared order. Indicators whose columns are missing are absent.
type DatasetResult struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Set        string    `json:"set"`
	EMR        string    `json:"emr"`
	RowCount   int       `json:"row_count"`
	Indicators []Result  `json:"indicators"`
	Evaluated  time.Time `json:"evaluated_at"`
}

// Evaluator runs indicator sets. It holds no per-run state, so one value can
// serve concurrent callers.
type Evaluator struct {
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an Evaluator that logs through logger.
func New(logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With().Str("component", "engine").Logger(),
		now:    time.Now,
	}
}

// Job pairs a dataset with the set it is evaluated against.
type Job struct {
	Set     *indicator.Set
	Dataset *dataset.Dataset
}

// Run evaluates every member of set against each dataset, in input order.
func (e *Evaluator) Run(set *indicator.Set, datasets []*dataset.Dataset, session Session) []DatasetResult {
	jobs := make([]Job, len(datasets))
	for i, ds := range datasets {
		jobs[i] = Job{Set: set, Dataset: ds}
	}
	return e.RunJobs(jobs, session)
}

// RunJobs evaluates each job in order under one run id. Uploads whose files
// classify into different sets are evaluated this way.
func (e *Evaluator) RunJobs(jobs []Job, session Session) []DatasetResult {
	runID := uuid.New().String()
	log := e.logger.With().Str("run_id", runID).Logger()
	session = session.normalize()

	log.Info().
		Int("datasets", len(jobs)).
		Str("emr", string(session.EMR)).
		Bool("rostered_only", session.RosteredOnly).
		Msg("evaluation started")

	out := make([]DatasetResult, 0, len(jobs))
	for _, job := range jobs {
		ds := job.Dataset
		dr := DatasetResult{
			RunID:     runID,
			Source:    ds.Source,
			Set:       job.Set.Name,
			EMR:       string(session.EMR),
			RowCount:  ds.RowCount(),
			Evaluated: e.now().UTC(),
		}

		env := indicator.Env{EMR: session.EMR, FilteredPatients: filteredPatients(ds)}
		keep, excluded := rosterMask(ds, session)
		setLog := log.With().Str("set", job.Set.Name).Logger()

		for _, def := range job.Set.Members {
			res, ok := e.evaluate(setLog, def, ds, env, keep, excluded)
			if !ok {
				continue
			}
			dr.Indicators = append(dr.Indicators, res)
		}
		setLog.Debug().Str("source", ds.Source).Int("indicators", len(dr.Indicators)).Msg("dataset evaluated")
		out = append(out, dr)
	}
	return out
}

// evaluate runs one indicator over ds. It reports false when the dataset
// lacks a column the indicator needs.
func (e *Evaluator) evaluate(log zerolog.Logger, def *indicator.Definition, ds *dataset.Dataset, env indicator.Env, keep []bool, excluded int) (Result, bool) {
	binding, err := ds.Bind(def.Columns)
	if err != nil {
		log.Info().
			Str("source", ds.Source).
			Str("indicator", def.ID).
			Strs("missing", ds.Missing(def.Columns)).
			Msg("indicator skipped")
		return Result{}, false
	}

	params := def.Snapshot()
	res := Result{
		IndicatorID: def.ID,
		Label:       def.Label(params),
		Tooltip:     tooltip(def, params),
		Excluded:    excluded,
		Benchmark:   def.Benchmark,
		Goal:        def.Goal,
	}

	n := ds.RowCount()
	res.Results = make([]indicator.TriState, 0, n-excluded)
	res.Rows = make([]int, 0, n-excluded)
	for row := 0; row < n; row++ {
		if keep != nil && !keep[row] {
			continue
		}
		outcome := def.Evaluate(binding.Args(row), params, env)
		res.Results = append(res.Results, outcome)
		res.Rows = append(res.Rows, row)
		switch outcome {
		case indicator.Pass:
			res.Passed++
		case indicator.NotApplicable:
			res.NotApplicable++
		}
	}
	res.Total = n - excluded - res.NotApplicable
	return res, true
}

func tooltip(def *indicator.Definition, p indicator.Params) string {
	if def.LongLabel != nil {
		return def.LongLabel(p)
	}
	return def.Label(p)
}

// rosterMask marks the rows that survive the rostered-only filter. A nil
// mask means every row is kept.
func rosterMask(ds *dataset.Dataset, session Session) ([]bool, int) {
	if !session.RosteredOnly {
		return nil, 0
	}
	col, ok := ds.Column(rosteredColumn)
	if !ok {
		return nil, 0
	}
	keep := make([]bool, len(col))
	excluded := 0
	for i, cell := range col {
		status := strings.ToUpper(strings.TrimSpace(cell))
		// Oscar codes rostered patients as RO; other EMRs export TRUE/FALSE.
		drop := status == "FALSE" || (session.EMR == indicator.Oscar && status != "RO")
		keep[i] = !drop
		if drop {
			excluded++
		}
	}
	return keep, excluded
}

// filteredPatients collects the patient numbers listed in the dataset's
// Filtered Patients column, if it has one.
func filteredPatients(ds *dataset.Dataset) map[string]bool {
	col, ok := ds.Column(filteredPatientsColumn)
	if !ok {
		return nil
	}
	out := make(map[string]bool)
	for _, cell := range col {
		if v := strings.TrimSpace(cell); v != "" {
			out[v] = true
		}
	}
	return out
}
