package engine

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/catalog"
	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/indicator"
)

func mustBuild(t *testing.T, source string, header []string, rows [][]string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Build(source, header, rows, zerolog.Nop())
	if err != nil {
		t.Fatalf("build %s: %v", source, err)
	}
	return ds
}

func valueAtMost(id, col string, limit float64) *indicator.Definition {
	return &indicator.Definition{
		ID:      id,
		Label:   func(indicator.Params) string { return id },
		Columns: []string{col},
		Params:  indicator.Params{"target": limit},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if a[0] == "" {
				return indicator.NotApplicable
			}
			return indicator.FromBool(indicator.Number(a[0]) <= p.Get("target"))
		},
	}
}

func TestRun_SkipsIndicatorWithMissingColumn(t *testing.T) {
	ds := mustBuild(t, "bp.csv", []string{"Patient #", "Systolic BP"}, [][]string{{"1", "120"}})
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{
		valueAtMost("a1c", "Hb A1C", 0.08),
		valueAtMost("sys", "Systolic BP", 130),
	}}

	results := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, DefaultSession())
	if len(results) != 1 {
		t.Fatalf("expected 1 dataset result, got %d", len(results))
	}
	got := results[0].Indicators
	if len(got) != 1 || got[0].IndicatorID != "sys" {
		t.Fatalf("expected only the sys indicator, got %+v", got)
	}
	if got[0].Passed != 1 || got[0].Total != 1 {
		t.Errorf("unexpected counts %d/%d", got[0].Passed, got[0].Total)
	}
}

func TestRun_PanickingRowIsNotApplicable(t *testing.T) {
	var rows [][]string
	for i := 0; i < 10; i++ {
		rows = append(rows, []string{fmt.Sprint(i)})
	}
	ds := mustBuild(t, "ten.csv", []string{"Patient #"}, rows)

	def := &indicator.Definition{
		ID:      "fragile",
		Label:   func(indicator.Params) string { return "fragile" },
		Columns: []string{"Patient #"},
		Predicate: func(a indicator.Args, _ indicator.Params, _ indicator.Env) indicator.TriState {
			if a[0] == "2" {
				var m map[string]int
				m["boom"]++
			}
			return indicator.Pass
		},
	}
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{def}}

	res := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, DefaultSession())[0].Indicators[0]
	if res.Results[2] != indicator.NotApplicable {
		t.Errorf("expected row 3 to be n/a, got %s", res.Results[2])
	}
	if res.Passed != 9 || res.Total != 9 || res.NotApplicable != 1 {
		t.Errorf("expected 9/9 with one n/a, got %d/%d n/a=%d", res.Passed, res.Total, res.NotApplicable)
	}
}

func TestRun_Totals(t *testing.T) {
	ds := mustBuild(t, "a1c.csv", []string{"Hb A1C"}, [][]string{{"0.07"}, {"0.09"}, {""}, {"0.06"}})
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{valueAtMost("a1c", "Hb A1C", 0.08)}}

	res := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, DefaultSession())[0].Indicators[0]
	if res.Passed != 2 || res.Total != 3 || res.NotApplicable != 1 || res.Excluded != 0 {
		t.Errorf("unexpected aggregate %+v", res)
	}
	if len(res.Results) != 4 || len(res.Rows) != 4 {
		t.Errorf("expected a result per row, got %d", len(res.Results))
	}
}

func TestRun_RosterFilter(t *testing.T) {
	header := []string{"Rostered", "Hb A1C"}
	rows := [][]string{
		{"TRUE", "0.07"},
		{"false", "0.07"},
		{"RO", "0.07"},
		{"FS", ""},
	}
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{valueAtMost("a1c", "Hb A1C", 0.08)}}
	ev := New(zerolog.Nop())

	tests := []struct {
		name     string
		session  Session
		excluded int
		passed   int
		total    int
	}{
		{"filter off", Session{EMR: indicator.PSS}, 0, 3, 3},
		{"pss", Session{EMR: indicator.PSS, RosteredOnly: true}, 1, 2, 2},
		{"oscar", Session{EMR: indicator.Oscar, RosteredOnly: true}, 3, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := mustBuild(t, "roster.csv", header, rows)
			res := ev.Run(set, []*dataset.Dataset{ds}, tt.session)[0].Indicators[0]
			if res.Excluded != tt.excluded || res.Passed != tt.passed || res.Total != tt.total {
				t.Errorf("expected excluded=%d passed=%d total=%d, got %d %d %d",
					tt.excluded, tt.passed, tt.total, res.Excluded, res.Passed, res.Total)
			}
			if len(res.Rows) != len(rows)-tt.excluded {
				t.Errorf("expected %d evaluated rows, got %d", len(rows)-tt.excluded, len(res.Rows))
			}
		})
	}
}

func TestRun_RosterFilterNeedsColumn(t *testing.T) {
	ds := mustBuild(t, "plain.csv", []string{"Hb A1C"}, [][]string{{"0.07"}, {"0.09"}})
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{valueAtMost("a1c", "Hb A1C", 0.08)}}
	res := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, Session{EMR: indicator.Oscar, RosteredOnly: true})[0].Indicators[0]
	if res.Excluded != 0 || res.Total != 2 {
		t.Errorf("filter should not apply without a Rostered column: %+v", res)
	}
}

func TestRun_PreservesDatasetOrder(t *testing.T) {
	set := &indicator.Set{Name: "Test", Members: []*indicator.Definition{valueAtMost("a1c", "Hb A1C", 0.08)}}
	var datasets []*dataset.Dataset
	for _, name := range []string{"c.csv", "a.csv", "b.csv"} {
		datasets = append(datasets, mustBuild(t, name, []string{"Hb A1C"}, [][]string{{"0.07"}}))
	}
	results := New(zerolog.Nop()).Run(set, datasets, DefaultSession())
	for i, want := range []string{"c.csv", "a.csv", "b.csv"} {
		if results[i].Source != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].Source)
		}
		if results[i].RunID != results[0].RunID || results[i].RunID == "" {
			t.Error("datasets of one run should share a run id")
		}
	}
}

func TestRun_FilteredPatientsForOscar(t *testing.T) {
	c := catalog.New()
	set, err := c.Lookup(catalog.SetADHD)
	if err != nil {
		t.Fatal(err)
	}
	ds := mustBuild(t, "adhd.csv",
		[]string{"Patient #", "Doctor Number", "Current Date", "Last Seen Date", "Filtered Patients"},
		[][]string{
			{"100", "9", "15/06/2020", "01/03/2020", "100"},
			{"101", "9", "15/06/2020", "01/03/2020", ""},
			{"102", "9", "15/06/2020", "01/01/2018", "102"},
		})

	res := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, Session{EMR: indicator.Oscar})[0]
	if len(res.Indicators) != 1 {
		t.Fatalf("expected only the med review indicator, got %d", len(res.Indicators))
	}
	r := res.Indicators[0]
	if r.Passed != 1 || r.Total != 2 || r.NotApplicable != 1 {
		t.Errorf("unexpected aggregate passed=%d total=%d n/a=%d", r.Passed, r.Total, r.NotApplicable)
	}
}

func TestRun_DiabetesExport(t *testing.T) {
	c := catalog.New()
	header := []string{"Patient #", "Doctor Number", "Current Date", "K030A", "Q040A", "Date Hb A1C", "Hb A1C", "Date LDL"}
	set, err := c.Classify(header)
	if err != nil {
		t.Fatal(err)
	}
	ds := mustBuild(t, "dm.csv", header, [][]string{
		{"1", "9", "15/06/2020", "01/02/2020", "", "01/03/2020", "0.071", "01/01/2020"},
		{"2", "9", "15/06/2020", "", "", "01/01/2019", "0.095", ""},
		{"3", "9", "15/06/2020", "01/09/2020", "", "01/05/2020", "0.079", "01/05/2020"},
	})

	res := New(zerolog.Nop()).Run(set, []*dataset.Dataset{ds}, DefaultSession())[0]
	want := map[string][2]int{
		"dm-assessment": {1, 2},
		"a1c-measured":  {2, 3},
		"a1c-target":    {2, 3},
		"ldl-measured":  {2, 3},
	}
	if len(res.Indicators) != len(want) {
		t.Fatalf("expected %d indicators, got %d", len(want), len(res.Indicators))
	}
	for _, r := range res.Indicators {
		w := want[r.IndicatorID]
		if r.Passed != w[0] || r.Total != w[1] {
			t.Errorf("%s: expected %d/%d, got %d/%d", r.IndicatorID, w[0], w[1], r.Passed, r.Total)
		}
	}
	if res.Indicators[0].Benchmark == nil || *res.Indicators[0].Benchmark != indicator.AvgDiabeticAssessment {
		t.Error("expected the diabetic assessment benchmark")
	}
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(Session{})
	if store.Get().EMR != indicator.PSS {
		t.Errorf("expected default PSS, got %s", store.Get().EMR)
	}
	store.Set(Session{EMR: indicator.Accuro, RosteredOnly: true})
	if got := store.Get(); got.EMR != indicator.Accuro || !got.RosteredOnly {
		t.Errorf("unexpected session %+v", got)
	}
}

func TestRunJobs_MixedSets(t *testing.T) {
	a1c := &indicator.Set{Name: "A1C", Members: []*indicator.Definition{valueAtMost("a1c", "Hb A1C", 0.08)}}
	bp := &indicator.Set{Name: "BP", Members: []*indicator.Definition{valueAtMost("sys", "Systolic BP", 130)}}
	jobs := []Job{
		{Set: bp, Dataset: mustBuild(t, "ht.csv", []string{"Systolic BP"}, [][]string{{"120"}, {"150"}})},
		{Set: a1c, Dataset: mustBuild(t, "dm.csv", []string{"Hb A1C"}, [][]string{{"0.07"}})},
	}

	results := New(zerolog.Nop()).RunJobs(jobs, Session{})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Set != "BP" || results[1].Set != "A1C" {
		t.Errorf("unexpected set order %s, %s", results[0].Set, results[1].Set)
	}
	if results[0].RunID != results[1].RunID {
		t.Error("jobs of one batch should share a run id")
	}
	if results[0].EMR != string(indicator.PSS) {
		t.Errorf("expected the empty session to default to PSS, got %s", results[0].EMR)
	}
	if r := results[0].Indicators[0]; r.Passed != 1 || r.Total != 2 {
		t.Errorf("unexpected BP counts %d/%d", r.Passed, r.Total)
	}
}
