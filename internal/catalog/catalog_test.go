package catalog

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/indicator"
)

var pss = indicator.Env{EMR: indicator.PSS}

func TestClassify(t *testing.T) {
	c := New()
	identity := []string{"Patient #", "Doctor Number"}

	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{"diabetes", []string{"Current Date", "Date Hb A1C", "Hb A1C"}, SetDiabetes},
		{"hypertension", []string{"Systolic BP", "Diastolic BP"}, SetHypertension},
		{"immunizations by height date", []string{"height date", "weight date"}, SetImmunizations},
		{"immunizations by measurements", []string{"measurements"}, SetImmunizations},
		{"lung health", []string{"COPD Screening Date", "Risk Factors"}, SetLungHealth},
		{"smoking cessation", []string{"Smoking Cessation Date"}, SetSmokingCessation},
		{"depression", []string{"PHQ9 Dates", "PHQ9 Occurrences"}, SetDepression},
		{"preventative care", []string{"Mammogram", "Pap Test Report"}, SetPreventativeCare},
		{"well baby", []string{"Rourke", "A002A"}, SetWellBaby},
		{"fallback", []string{"Last Seen Date"}, SetADHD},
		{"substring match", []string{"Date Hb A1C (latest)"}, SetDiabetes},
		{"priority order", []string{"Systolic BP", "Hb A1C"}, SetDiabetes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := append(append([]string{}, identity...), tt.header...)
			set, err := c.Classify(header)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if set.Name != tt.want {
				t.Errorf("expected %q, got %q", tt.want, set.Name)
			}
		})
	}
}

func TestClassify_MissingIdentityColumns(t *testing.T) {
	c := New()
	for _, header := range [][]string{
		{"Patient #", "Hb A1C"},
		{"Doctor Number", "Hb A1C"},
		{"Patient #s", "Doctor Number", "Hb A1C"},
		{"Patient #", "Doctor Number 2", "Hb A1C"},
		{},
	} {
		_, err := c.Classify(header)
		if !errors.Is(err, ErrMissingIdentityColumns) {
			t.Errorf("header %v: expected ErrMissingIdentityColumns, got %v", header, err)
		}
	}
}

func TestCheckIdentityColumns(t *testing.T) {
	if err := CheckIdentityColumns([]string{"Hb A1C", " Patient # ", "Doctor Number"}); err != nil {
		t.Errorf("expected identity columns to be found, got %v", err)
	}
	if err := CheckIdentityColumns([]string{"Patient #", "Primary Doctor Number"}); !errors.Is(err, ErrMissingIdentityColumns) {
		t.Errorf("expected ErrMissingIdentityColumns, got %v", err)
	}
}

func TestClassify_NeverPicksDiabetesFull(t *testing.T) {
	c := New()
	set, err := c.Classify([]string{"Patient #", "Doctor Number", "Hb A1C", "eGFR", "Date eGFR"})
	if err != nil {
		t.Fatal(err)
	}
	if set.Name == SetDiabetesFull {
		t.Error("Diabetes (Full) should only be selectable by name")
	}
}

func TestLookup(t *testing.T) {
	c := New()
	set, err := c.Lookup("diabetes (full)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if set.Name != SetDiabetesFull || len(set.Members) != 12 {
		t.Errorf("unexpected set %q with %d members", set.Name, len(set.Members))
	}

	if _, err := c.Lookup("Cardiology"); !errors.Is(err, ErrUnknownSet) {
		t.Errorf("expected ErrUnknownSet, got %v", err)
	}
}

func TestSets_Order(t *testing.T) {
	want := []string{
		SetDiabetes, SetHypertension, SetImmunizations, SetLungHealth, SetSmokingCessation,
		SetDepression, SetPreventativeCare, SetWellBaby, SetADHD, SetDiabetesFull,
	}
	sets := New().Sets()
	if len(sets) != len(want) {
		t.Fatalf("expected %d sets, got %d", len(want), len(sets))
	}
	for i, s := range sets {
		if s.Name != want[i] {
			t.Errorf("set %d: expected %q, got %q", i, want[i], s.Name)
		}
	}
}

func TestSharedDefinitions(t *testing.T) {
	c := New()
	lung, _ := c.Lookup(SetLungHealth)
	smoking, _ := c.Lookup(SetSmokingCessation)

	a := lung.Find("smoking-status-recorded")
	b := smoking.Find("smoking-status-recorded")
	if a == nil || a != b {
		t.Fatal("smoking status should be the same definition in both sets")
	}
	if err := a.SetParam("age", 16); err != nil {
		t.Fatal(err)
	}
	if got := b.Snapshot().Get("age"); got != 16 {
		t.Errorf("expected shared edit to be visible, got %v", got)
	}

	other := New()
	d, _ := other.Indicator("smoking-status-recorded")
	if got := d.Snapshot().Get("age"); got != 12 {
		t.Errorf("a new catalog should start at defaults, got %v", got)
	}
}

func TestIndicators_Distinct(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range New().Indicators() {
		if seen[d.ID] {
			t.Errorf("duplicate indicator %q", d.ID)
		}
		seen[d.ID] = true
		if d.Predicate == nil || d.Label == nil {
			t.Errorf("%s: missing predicate or label", d.ID)
		}
		if len(d.Defaults) > len(d.Modifiable) {
			t.Errorf("%s: more defaults than modifiable params", d.ID)
		}
	}
	if len(seen) != 33 {
		t.Errorf("expected 33 indicators, got %d", len(seen))
	}
}

func TestApplyOverrides(t *testing.T) {
	c := New()
	err := c.ApplyOverrides(map[string]map[string]float64{
		"breast-cancer-screening": {"minage": 45, "months": 24},
		"no-such-indicator":       {"months": 1},
		"a1c-measured":            {"target": 1},
	})
	if err == nil {
		t.Fatal("expected an aggregated error")
	}
	if !errors.Is(err, ErrUnknownIndicator) {
		t.Errorf("expected ErrUnknownIndicator in %v", err)
	}
	if !errors.Is(err, indicator.ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam in %v", err)
	}

	d, _ := c.Indicator("breast-cancer-screening")
	p := d.Snapshot()
	if p.Get("minAge") != 45 || p.Get("months") != 24 {
		t.Errorf("valid overrides not applied: %v", p)
	}

	c.ResetAll()
	if got := d.Snapshot().Get("minAge"); got != 50 {
		t.Errorf("expected reset to 50, got %v", got)
	}
}

func TestResetToDefault_WithoutDefaults(t *testing.T) {
	d := lungHealthScreen()
	if err := d.SetParam("age", 55); err != nil {
		t.Fatal(err)
	}
	d.ResetToDefault()
	if got := d.Snapshot().Get("age"); got != 55 {
		t.Errorf("reset without defaults should be a no-op, got %v", got)
	}
}

func TestLabels(t *testing.T) {
	c := New()
	tests := []struct {
		id        string
		short     string
		tooltipOK func(string) bool
	}{
		{"a1c-target", "A1C ≤ 0.08 in past 6 months", nil},
		{"breast-cancer-screening", "Breast cancer screening within 3 years, females 50 to 74", nil},
		{"bp-target", "BP < 130/80 in past 6 months", nil},
		{"cymh-screening", "Children with recent screening tool", func(s string) bool { return s != "Children with recent screening tool" }},
	}
	for _, tt := range tests {
		d, err := c.Indicator(tt.id)
		if err != nil {
			t.Fatal(err)
		}
		if got := d.ShortLabel(); got != tt.short {
			t.Errorf("%s: expected label %q, got %q", tt.id, tt.short, got)
		}
		if tt.tooltipOK != nil && !tt.tooltipOK(d.Tooltip()) {
			t.Errorf("%s: unexpected tooltip %q", tt.id, d.Tooltip())
		}
	}
}

type predicateCase struct {
	name string
	env  indicator.Env
	args []string
	want indicator.TriState
}

func runCases(t *testing.T, d *indicator.Definition, cases []predicateCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(d.ID+"/"+tc.name, func(t *testing.T) {
			if len(tc.args) != len(d.Columns) {
				t.Fatalf("expected %d args, got %d", len(d.Columns), len(tc.args))
			}
			env := tc.env
			if env.EMR == "" {
				env = pss
			}
			got := d.Evaluate(tc.args, d.Snapshot(), env)
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

const today = "2020-06-15"

func TestDiabetesPredicates(t *testing.T) {
	runCases(t, diabeticAssessment(), []predicateCase{
		{"recent K030", pss, []string{today, "2020-01-01", ""}, indicator.Pass},
		{"recent Q040", pss, []string{today, "", "2019-07-01"}, indicator.Pass},
		{"never billed", pss, []string{today, "", ""}, indicator.Fail},
		{"too old", pss, []string{today, "2019-01-01", "2019-02-01"}, indicator.Fail},
		{"future billing", pss, []string{today, "2020-07-01", ""}, indicator.NotApplicable},
		{"bad report date", pss, []string{"soon", "2020-01-01", ""}, indicator.NotApplicable},
	})
	runCases(t, a1cTarget(), []predicateCase{
		{"under target", pss, []string{today, "2020-03-01", "0.07"}, indicator.Pass},
		{"at target", pss, []string{today, "2020-03-01", "0.08"}, indicator.Pass},
		{"over target", pss, []string{today, "2020-03-01", "0.09"}, indicator.Fail},
		{"never measured", pss, []string{today, "", ""}, indicator.Fail},
		{"stale", pss, []string{today, "2019-06-01", "0.07"}, indicator.Fail},
		{"future", pss, []string{today, "2020-08-01", "0.07"}, indicator.NotApplicable},
		{"garbage value", pss, []string{today, "2020-03-01", "high"}, indicator.Fail},
	})
	runCases(t, ldlTarget(), []predicateCase{
		{"under", pss, []string{today, "2020-01-01", "1.8"}, indicator.Pass},
		{"below detection", pss, []string{today, "2020-01-01", "<1.00"}, indicator.Pass},
		{"over", pss, []string{today, "2020-01-01", "3.1"}, indicator.Fail},
	})
	runCases(t, bpTarget(), []predicateCase{
		{"controlled", pss, []string{today, "2020-05-01", "120", "70"}, indicator.Pass},
		{"systolic high", pss, []string{today, "2020-05-01", "135", "70"}, indicator.Fail},
		{"boundary excluded", pss, []string{today, "2020-05-01", "130", "70"}, indicator.Fail},
	})
	runCases(t, acrTarget(), []predicateCase{
		{"coded below", pss, []string{today, "2020-01-01", "<2.0", "F"}, indicator.Pass},
		{"high", pss, []string{today, "2020-01-01", "3.4", "M"}, indicator.Fail},
	})
	runCases(t, egfrTarget(), []predicateCase{
		{"normal", pss, []string{today, "2020-01-01", "75"}, indicator.Pass},
		{"coded high", pss, []string{today, "2020-01-01", ">120"}, indicator.Pass},
		{"coded range", pss, []string{today, "2020-01-01", ">=90"}, indicator.Pass},
		{"low", pss, []string{today, "2020-01-01", "45"}, indicator.Fail},
	})
	runCases(t, currentSmokers(), []predicateCase{
		{"smoker", pss, []string{"Current Smoker; HTN"}, indicator.Pass},
		{"non smoker", pss, []string{"Ex-smoker"}, indicator.Fail},
	})
}

func TestHypertensionPredicates(t *testing.T) {
	runCases(t, baselineBP(), []predicateCase{
		{"measured", pss, []string{today, "2019-12-01", "55"}, indicator.Pass},
		{"not measured", pss, []string{today, "", "55"}, indicator.Fail},
		{"too young", pss, []string{today, "2019-12-01", "30"}, indicator.NotApplicable},
	})
	runCases(t, elevatedBPVisit(), []predicateCase{
		{"seen", pss, []string{today, "2020-01-01", "150", "95", "401.9 HTN"}, indicator.Pass},
		{"not seen", pss, []string{today, "2019-01-01", "150", "95", "401"}, indicator.Fail},
		{"not hypertensive", pss, []string{today, "2020-01-01", "150", "95", "250"}, indicator.NotApplicable},
		{"controlled", pss, []string{today, "2020-01-01", "120", "70", "401"}, indicator.NotApplicable},
	})
	runCases(t, hypertensionBPControl(), []predicateCase{
		{"controlled", pss, []string{"130", "85", "401"}, indicator.Pass},
		{"uncontrolled", pss, []string{"145", "85", "401"}, indicator.Fail},
		{"no reading", pss, []string{"", "", "401"}, indicator.NotApplicable},
		{"no diagnosis", pss, []string{"130", "85", ""}, indicator.NotApplicable},
	})
}

func TestImmunizationPredicates(t *testing.T) {
	runCases(t, infantImmunizations(), []predicateCase{
		{"complete", pss, []string{"2", "1", "4"}, indicator.Pass},
		{"coded months", pss, []string{"26mo", "1", "4"}, indicator.Pass},
		{"incomplete", pss, []string{"2", "0", "4"}, indicator.Fail},
		{"wrong age", pss, []string{"3", "1", "4"}, indicator.NotApplicable},
		{"infant in months", pss, []string{"18mo", "1", "4"}, indicator.NotApplicable},
		{"weeks", pss, []string{"6wk", "0", "1"}, indicator.NotApplicable},
	})
	runCases(t, childImmunizations(), []predicateCase{
		{"complete", pss, []string{"9", "2", "5"}, indicator.Pass},
		{"missing dose", pss, []string{"9", "2", "4"}, indicator.Fail},
		{"too old", pss, []string{"14", "2", "5"}, indicator.NotApplicable},
	})
	runCases(t, teenDiphtheriaBooster(), []predicateCase{
		{"booster at 15", pss, []string{today, "20", "2015-06-15"}, indicator.Pass},
		{"booster too early", pss, []string{today, "20", "2010-06-15"}, indicator.Fail},
		{"no booster", pss, []string{today, "20", ""}, indicator.Fail},
		{"too young", pss, []string{today, "17", "2015-06-15"}, indicator.NotApplicable},
	})
	runCases(t, heightWeightLastImmunization(), []predicateCase{
		{"measured at shot", pss, []string{"10", today, "2020-01-01", "2020-01-01", "2019-06-01", ""}, indicator.Pass},
		{"shot after measurement", pss, []string{"10", today, "2020-01-01", "2020-01-01", "2020-02-01", ""}, indicator.Fail},
		{"different days", pss, []string{"10", today, "2020-01-01", "2020-01-02", "", ""}, indicator.NotApplicable},
		{"never measured", pss, []string{"10", today, "", "", "", ""}, indicator.NotApplicable},
		{"out of range", pss, []string{"30", today, "2020-01-01", "2020-01-01", "", ""}, indicator.NotApplicable},
		{"no shots recent measure", pss, []string{"10", today, "2020-01-01", "2020-01-01", "", ""}, indicator.Pass},
		{"no shots stale measure", pss, []string{"10", today, "2018-01-01", "2018-01-01", "", ""}, indicator.Fail},
	})
}

func TestLungPredicates(t *testing.T) {
	oscar := indicator.Env{EMR: indicator.Oscar}
	accuro := indicator.Env{EMR: indicator.Accuro}

	runCases(t, smokingStatusRecorded(), []predicateCase{
		{"recorded", pss, []string{"Current Smoker", "30"}, indicator.Pass},
		{"not recorded", pss, []string{"HTN", "30"}, indicator.Fail},
		{"child", pss, []string{"", "10"}, indicator.NotApplicable},
		{"oscar any value", oscar, []string{"no", "30"}, indicator.Pass},
		{"oscar blank", oscar, []string{"", "30"}, indicator.Fail},
	})
	runCases(t, smokingCessation(), []predicateCase{
		{"attempted", pss, []string{"current smoker", "2020-01-01", "2020-05-01", today}, indicator.Pass},
		{"not attempted", pss, []string{"current smoker", "", "2020-05-01", today}, indicator.Fail},
		{"non smoker", pss, []string{"non-smoker", "2020-01-01", "2020-05-01", today}, indicator.NotApplicable},
		{"not seen", pss, []string{"current smoker", "2020-01-01", "2018-01-01", today}, indicator.NotApplicable},
		{"never seen", pss, []string{"current smoker", "2020-01-01", "", today}, indicator.NotApplicable},
		{"oscar smoker", oscar, []string{"Yes", "2020-01-01", "2020-05-01", today}, indicator.Pass},
		{"oscar non smoker", oscar, []string{"No", "2020-01-01", "2020-05-01", today}, indicator.NotApplicable},
		{"accuro", accuro, []string{"", "2020-01-01", "2020-05-01", today}, indicator.Pass},
	})
	runCases(t, adultSmokersPneumovax(), []predicateCase{
		{"vaccinated", pss, []string{"30", "Current Smoker", "1"}, indicator.Pass},
		{"unvaccinated", pss, []string{"30", "Current Smoker", "0"}, indicator.Fail},
		{"at minimum age", pss, []string{"18", "Current Smoker", "1"}, indicator.NotApplicable},
		{"oscar current", oscar, []string{"30", "current", "1"}, indicator.Pass},
	})
	runCases(t, seniorsPneumovax(), []predicateCase{
		{"vaccinated", pss, []string{"70", "2"}, indicator.Pass},
		{"unvaccinated", pss, []string{"70", ""}, indicator.Fail},
		{"too young", pss, []string{"65", "1"}, indicator.NotApplicable},
	})
	runCases(t, lungDiseasePneumovax(), []predicateCase{
		{"asthma vaccinated", pss, []string{"40", "Asthma", "1"}, indicator.Pass},
		{"icd9 unvaccinated", pss, []string{"40", "491.2", "0"}, indicator.Fail},
		{"no disease", pss, []string{"40", "HTN", "1"}, indicator.NotApplicable},
	})
	runCases(t, lungHealthScreen(), []predicateCase{
		{"screened", pss, []string{"current smoker", "", "2019-01-01", today, "50"}, indicator.Pass},
		{"not screened", pss, []string{"current smoker", "", "", today, "50"}, indicator.Fail},
		{"already diagnosed", pss, []string{"current smoker", "COPD", "2019-01-01", today, "50"}, indicator.NotApplicable},
		{"too young", pss, []string{"current smoker", "", "2019-01-01", today, "40"}, indicator.NotApplicable},
	})
}

func TestMentalHealthPredicates(t *testing.T) {
	oscar := indicator.Env{EMR: indicator.Oscar, FilteredPatients: map[string]bool{"1001": true}}

	runCases(t, phq9FollowUp(), []predicateCase{
		{"no forms", pss, []string{today, "", "0"}, indicator.NotApplicable},
		{"one recent", pss, []string{today, "2020-03-01", "1"}, indicator.Pass},
		{"one stale", pss, []string{today, "2019-01-01", "1"}, indicator.Fail},
		{"several", pss, []string{today, "2019-01-01", "3"}, indicator.Pass},
	})
	runCases(t, adhdMedReview(), []predicateCase{
		{"pss seen", pss, []string{today, "2020-01-01", "77"}, indicator.Pass},
		{"pss not seen", pss, []string{today, "2018-01-01", "77"}, indicator.Fail},
		{"oscar filtered", oscar, []string{today, "2020-01-01", "1001"}, indicator.Pass},
		{"oscar not filtered", oscar, []string{today, "2020-01-01", "1002"}, indicator.NotApplicable},
	})
	runCases(t, cymhScreening(), []predicateCase{
		{"screened", pss, []string{today, "2019-05-01", "2019-01-01"}, indicator.Pass},
		{"stale", pss, []string{today, "2019-05-01", "2017-01-01"}, indicator.Fail},
		{"not referred", pss, []string{today, "", "2019-01-01"}, indicator.NotApplicable},
	})
}

func TestPreventativeCarePredicates(t *testing.T) {
	runCases(t, breastCancerScreening(), []predicateCase{
		{"screened", pss, []string{today, "60", "F", "2018-01-01"}, indicator.Pass},
		{"never screened", pss, []string{today, "60", "F", ""}, indicator.Fail},
		{"male", pss, []string{today, "60", "M", "2018-01-01"}, indicator.NotApplicable},
		{"too old", pss, []string{today, "80", "F", "2018-01-01"}, indicator.NotApplicable},
	})
	runCases(t, cervicalCancerScreening(), []predicateCase{
		{"screened", pss, []string{today, "30", "F", "2019-01-01"}, indicator.Pass},
		{"stale", pss, []string{today, "30", "F", "2016-01-01"}, indicator.Fail},
	})
	runCases(t, colorectalCancerScreening(), []predicateCase{
		{"screened", pss, []string{today, "55", "2019-01-01"}, indicator.Pass},
		{"too young", pss, []string{today, "45", "2019-01-01"}, indicator.NotApplicable},
	})
	runCases(t, fluVaccine(), []predicateCase{
		{"vaccinated", pss, []string{today, "70", "2019-11-01"}, indicator.Pass},
		{"at minimum age", pss, []string{today, "65", "2019-11-01"}, indicator.NotApplicable},
		{"unvaccinated", pss, []string{today, "70", ""}, indicator.Fail},
	})
}

func TestWellBabyPredicate(t *testing.T) {
	runCases(t, wellBabyVisit(), []predicateCase{
		{"billed", pss, []string{"2", "1", ""}, indicator.Pass},
		{"rourke", pss, []string{"3", "", "1"}, indicator.Pass},
		{"neither", pss, []string{"2", "0", ""}, indicator.Fail},
		{"too old", pss, []string{"5", "1", "1"}, indicator.NotApplicable},
	})
}

func TestA1CHistogram(t *testing.T) {
	ds, err := dataset.Build("a1c.csv",
		[]string{"Patient #", "Hb A1C"},
		[][]string{{"1", "8.5"}, {"2", "0.07"}, {"3", "pending"}},
		zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	data, err := indicator.GetPlotData(a1cTarget(), ds, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data.AxisLabel != "Hb A1C (%)" {
		t.Errorf("unexpected axis label %q", data.AxisLabel)
	}
	want := []float64{0.085, 0.07}
	if len(data.Values) != len(want) {
		t.Fatalf("expected %d values, got %v", len(want), data.Values)
	}
	for i := range want {
		if math.Abs(data.Values[i]-want[i]) > 1e-9 {
			t.Errorf("value %d: expected %v, got %v", i, want[i], data.Values[i])
		}
	}
}

func TestBaselineBPHistogram_UsesParams(t *testing.T) {
	ds, err := dataset.Build("bp.csv",
		[]string{"Current Date", "Date Systolic BP", "Age"},
		[][]string{
			{"15/06/2020", "15/03/2020", "50"},
			{"15/06/2020", "15/03/2020", "20"},
		},
		zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	d := baselineBP()
	data, err := indicator.GetPlotData(d, ds, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Values) != 1 || data.Values[0] != 3 {
		t.Errorf("expected [3], got %v", data.Values)
	}

	if err := d.SetParam("age", 18); err != nil {
		t.Fatal(err)
	}
	data, _ = indicator.GetPlotData(d, ds, zerolog.Nop())
	if len(data.Values) != 2 {
		t.Errorf("expected both patients after lowering age, got %v", data.Values)
	}
}
