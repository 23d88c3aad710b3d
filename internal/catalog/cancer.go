package catalog

import (
	"github.com/cdreport/cdreport/internal/indicator"
)

func years(p indicator.Params) string {
	return indicator.FormatNumber(p.Get("months") / 12)
}

// inAgeBand reports whether age lies in [minAge, maxAge]. An unparseable age
// is kept in the denominator.
func inAgeBand(age float64, p indicator.Params) bool {
	return !(age < p.Get("minAge") || age > p.Get("maxAge"))
}

func breastCancerScreening() *indicator.Definition {
	return &indicator.Definition{
		ID: "breast-cancer-screening",
		Label: func(p indicator.Params) string {
			return "Breast cancer screening within " + years(p) + " years, females " + p.S("minAge") + " to " + p.S("maxAge")
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients aged " + p.S("minAge") + " to " + p.S("maxAge") +
				" who received a mammogram in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Age", "Sex", "Mammogram"},
		Params:     indicator.Params{"months": 36, "minAge": 50, "maxAge": 74},
		Modifiable: []string{"months", "minAge", "maxAge"},
		Defaults:   []float64{36, 50, 74},
		Benchmark:  ptr(indicator.AvgMammogram),
		Goal:       ptr(indicator.GoalMammogram),
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if !inAgeBand(num(a[1]), p) || a[2] != "F" {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[3])
		},
	}
}

func cervicalCancerScreening() *indicator.Definition {
	return &indicator.Definition{
		ID: "cervical-cancer-screening",
		Label: func(p indicator.Params) string {
			return "Cervical cancer screening within " + years(p) + " years, females " + p.S("minAge") + " to " + p.S("maxAge")
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients aged " + p.S("minAge") + " to " + p.S("maxAge") + " who received a Pap test in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Age", "Sex", "Pap Test Report"},
		Params:     indicator.Params{"months": 36, "minAge": 21, "maxAge": 69},
		Modifiable: []string{"months", "minAge", "maxAge"},
		Defaults:   []float64{36, 21, 69},
		Benchmark:  ptr(indicator.AvgPap),
		Goal:       ptr(indicator.GoalPap),
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if !inAgeBand(num(a[1]), p) || a[2] != "F" {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[3])
		},
	}
}

func colorectalCancerScreening() *indicator.Definition {
	return &indicator.Definition{
		ID: "colorectal-cancer-screening",
		Label: func(p indicator.Params) string {
			return "Colorectal cancer screening within " + years(p) + " years, patients " + p.S("minAge") + " to " + p.S("maxAge")
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients over the age of " + p.S("minAge") + " who performed an FOBT in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Age", "FOBT"},
		Params:     indicator.Params{"months": 24, "minAge": 50, "maxAge": 74},
		Modifiable: []string{"months", "minAge", "maxAge"},
		Defaults:   []float64{24, 50, 74},
		Benchmark:  ptr(indicator.AvgFOBT),
		Goal:       ptr(indicator.GoalFOBT),
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if !inAgeBand(num(a[1]), p) {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[2])
		},
	}
}

func fluVaccine() *indicator.Definition {
	return &indicator.Definition{
		ID: "flu-vaccine",
		Label: func(p indicator.Params) string {
			return "Influenza vaccine within past year, patients > " + p.S("minAge")
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients over the age of " + p.S("minAge") + " who received a flu vaccine in the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Age", "influenza date"},
		Params:     indicator.Params{"months": 12, "minAge": 65},
		Modifiable: []string{"months", "minAge"},
		Defaults:   []float64{12, 65},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if num(a[1]) <= p.Get("minAge") {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[2])
		},
	}
}
