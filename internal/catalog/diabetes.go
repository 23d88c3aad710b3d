package catalog

import (
	"github.com/cdreport/cdreport/internal/dates"
	"github.com/cdreport/cdreport/internal/indicator"
)

func diabeticAssessment() *indicator.Definition {
	return &indicator.Definition{
		ID: "dm-assessment",
		Label: func(p indicator.Params) string {
			return "Diabetic Assessment in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients who have had a diabetic assessment (K030/Q040) in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "K030A", "Q040A"},
		Params:     indicator.Params{"months": 12},
		Modifiable: []string{"months"},
		Defaults:   []float64{12},
		Benchmark:  ptr(indicator.AvgDiabeticAssessment),
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"Current Date", "K030A", "Q040A"},
			Value: func(a indicator.Args, _ indicator.Params) float64 {
				cur, ok := dates.ToDate(a[0])
				if !ok {
					return nan()
				}
				last, ok := dates.MostRecentDate(a[1], a[2])
				if !ok {
					return nan()
				}
				return float64(dates.MonthsBetween(cur, last))
			},
			Label: "Months Ago",
		},
		// K030A is billed quarterly, Q040A annually; either counts.
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			current, k, q := a[0], a[1], a[2]
			if k == "" && q == "" {
				return indicator.Fail
			}
			cur, ok := dates.ToDate(current)
			if !ok {
				return indicator.NotApplicable
			}
			for _, billed := range []string{k, q} {
				if d, ok := dates.ToDate(billed); ok && d.After(cur) {
					return indicator.NotApplicable
				}
			}
			last, ok := dates.MostRecentDate(k, q)
			if !ok {
				return indicator.Fail
			}
			return indicator.FromBool(!last.Before(dates.SubtractMonths(cur, p.Int("months"))))
		},
	}
}

func a1cMeasured() *indicator.Definition {
	return &indicator.Definition{
		ID: "a1c-measured",
		Label: func(p indicator.Params) string {
			return "A1C measured in past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Hb A1C"},
		Params:     indicator.Params{"months": 6},
		Modifiable: []string{"months"},
		Defaults:   []float64{6},
		Benchmark:  ptr(indicator.AvgDateHbA1C),
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"Current Date", "Date Hb A1C"},
			Value: func(a indicator.Args, _ indicator.Params) float64 {
				return monthsAgo(a[0], a[1])
			},
			Label: "Months Ago",
		},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func a1cTarget() *indicator.Definition {
	return &indicator.Definition{
		ID: "a1c-target",
		Label: func(p indicator.Params) string {
			return "A1C ≤ " + p.S("target") + " in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with A1C less than or equal to " + p.S("target") + " measured in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Hb A1C", "Hb A1C"},
		Params:     indicator.Params{"months": 6, "target": 0.08},
		Modifiable: []string{"months", "target"},
		Defaults:   []float64{6, 0.08},
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"Hb A1C"},
			// Some exports report A1C as a percentage rather than a fraction.
			Value: func(a indicator.Args, _ indicator.Params) float64 {
				v := num(a[0])
				if v > 1 {
					return v / 100
				}
				return v
			},
			Label: "Hb A1C (%)",
		},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1]).And(num(a[2]) <= p.Get("target"))
		},
	}
}

func ldlMeasured() *indicator.Definition {
	return &indicator.Definition{
		ID: "ldl-measured",
		Label: func(p indicator.Params) string {
			return "LDL measured within the past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of diabetic patients with LDL measured within the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date LDL"},
		Params:     indicator.Params{"months": 12},
		Modifiable: []string{"months"},
		Defaults:   []float64{12},
		Benchmark:  ptr(indicator.AvgLDL),
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"Current Date", "Date LDL"},
			Value: func(a indicator.Args, _ indicator.Params) float64 {
				return monthsAgo(a[0], a[1])
			},
			Label: "Months Ago",
		},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func ldlTarget() *indicator.Definition {
	return &indicator.Definition{
		ID: "ldl-target",
		Label: func(p indicator.Params) string {
			return "LDL ≤ " + p.S("target") + " in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of diabetic patients with LDL less than or equal to " + p.S("target") + " measured within the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date LDL", "LDL"},
		Params:     indicator.Params{"months": 12, "target": 2.0},
		Modifiable: []string{"months", "target"},
		Defaults:   []float64{12, 2.0},
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"LDL"},
			Value: func(a indicator.Args, _ indicator.Params) float64 {
				return num(a[0])
			},
			Label: "LDL",
		},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1]).And(num(a[2]) <= p.Get("target") || a[2] == "<1.00")
		},
	}
}

func bpMeasured() *indicator.Definition {
	return &indicator.Definition{
		ID: "bp-measured",
		Label: func(p indicator.Params) string {
			return "BP measured in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with BP measured in past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Systolic BP"},
		Params:     indicator.Params{"months": 6},
		Modifiable: []string{"months"},
		Defaults:   []float64{6},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func bpTarget() *indicator.Definition {
	return &indicator.Definition{
		ID: "bp-target",
		Label: func(p indicator.Params) string {
			return "BP < " + p.S("sysTarget") + "/" + p.S("diasTarget") + " in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with BP less than " + p.S("sysTarget") + "/" + p.S("diasTarget") +
				" measured in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Systolic BP", "Systolic BP", "Diastolic BP"},
		Params:     indicator.Params{"months": 6, "sysTarget": 130, "diasTarget": 80},
		Modifiable: []string{"months", "sysTarget", "diasTarget"},
		Defaults:   []float64{6, 130, 80},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1]).
				And(num(a[3]) < p.Get("diasTarget") && num(a[2]) < p.Get("sysTarget"))
		},
	}
}

func acrMeasured() *indicator.Definition {
	return &indicator.Definition{
		ID: "acr-measured",
		Label: func(p indicator.Params) string {
			return "ACR measured in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with ACR measured in past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Microalbumin/Creatinine Ratio", "Microalbumin/Creatinine Ratio"},
		Params:     indicator.Params{"months": 12},
		Modifiable: []string{"months"},
		Defaults:   []float64{12},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

// ACR should be at most 2.0 for both men and women.
// http://guidelines.diabetes.ca/executivesummary/ch1
func acrTarget() *indicator.Definition {
	return &indicator.Definition{
		ID: "acr-target",
		Label: func(p indicator.Params) string {
			return "ACR ≤ " + p.S("target") + " in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with ACR ≤ " + p.S("target") + " measured in past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date Microalbumin/Creatinine Ratio", "Microalbumin/Creatinine Ratio", "Sex"},
		Params:     indicator.Params{"months": 12, "target": 2.0},
		Modifiable: []string{"months", "target"},
		Defaults:   []float64{12, 2.0},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1]).And(num(a[2]) <= p.Get("target") || a[2] == "<2.0")
		},
	}
}

func egfrMeasured() *indicator.Definition {
	return &indicator.Definition{
		ID: "egfr-measured",
		Label: func(p indicator.Params) string {
			return "eGFR measured in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with eGFR measured in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date eGFR"},
		Params:     indicator.Params{"months": 12},
		Modifiable: []string{"months"},
		Defaults:   []float64{12},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func egfrTarget() *indicator.Definition {
	return &indicator.Definition{
		ID: "egfr-target",
		Label: func(p indicator.Params) string {
			return "eGFR > " + p.S("target") + " in past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with eGFR greater than " + p.S("target") + " measured in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Date eGFR", "eGFR"},
		Params:     indicator.Params{"months": 12, "target": 60},
		Modifiable: []string{"months", "target"},
		Defaults:   []float64{12, 60},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			v := a[2]
			return measuredWithin(a[0], p.Int("months"), a[1]).And(num(v) > p.Get("target") || v == ">=90" || v == ">120")
		},
	}
}

func currentSmokers() *indicator.Definition {
	return &indicator.Definition{
		ID: "current-smokers",
		Label: func(indicator.Params) string {
			return "Current Smokers"
		},
		LongLabel: func(indicator.Params) string {
			return "% of patients who are coded as current smokers"
		},
		Columns:   []string{"Risk Factors"},
		Params:    indicator.Params{},
		Benchmark: ptr(indicator.AvgSmokers),
		Predicate: func(a indicator.Args, _ indicator.Params, _ indicator.Env) indicator.TriState {
			return indicator.FromBool(contains(a[0], "current smoker"))
		},
	}
}
