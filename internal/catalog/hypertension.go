package catalog

import (
	"strings"

	"github.com/cdreport/cdreport/internal/indicator"
)

// hypertensionICD9 marks essential hypertension on the problem list.
const hypertensionICD9 = "401"

func baselineBP() *indicator.Definition {
	return &indicator.Definition{
		ID: "baseline-bp",
		Label: func(p indicator.Params) string {
			return "BP measured in past " + p.S("months") + " months for  adults > " + p.S("age")
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients with BP measured in the past " + p.S("months") + " months for adults over " + p.S("age")
		},
		Columns:    []string{"Current Date", "Date Systolic BP", "Age"},
		Params:     indicator.Params{"months": 12, "age": 40},
		Modifiable: []string{"months", "age"},
		Defaults:   []float64{12, 40},
		Projection: &indicator.Projection{
			Kind:    indicator.Histogram,
			Columns: []string{"Current Date", "Date Systolic BP", "Age"},
			Value: func(a indicator.Args, p indicator.Params) float64 {
				if num(a[2]) >= p.Get("age") {
					return monthsAgo(a[0], a[1])
				}
				return nan()
			},
			Label: "Months Ago",
		},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if num(a[2]) < p.Get("age") {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

// Hypertensive patients with an elevated reading should have been seen
// recently.
func elevatedBPVisit() *indicator.Definition {
	return &indicator.Definition{
		ID: "elevated-bp-visit",
		Label: func(p indicator.Params) string {
			return "Hypertensive patients with BP > " + p.S("sysTarget") + "/" + p.S("diasTarget") + " who visited within " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients diagnosed with hypertension and with BP over " + p.S("sysTarget") + "/" + p.S("diasTarget") +
				" who have had a visit within the past " + p.S("months") + " months"
		},
		Columns:    []string{"Current Date", "Last Seen Date", "Systolic BP", "Diastolic BP", "Problem List"},
		Params:     indicator.Params{"months": 9, "sysTarget": 140, "diasTarget": 90},
		Modifiable: []string{"months", "sysTarget", "diasTarget"},
		Defaults:   []float64{9, 140, 90},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			sys, dias, problems := num(a[2]), num(a[3]), a[4]
			if !strings.Contains(problems, hypertensionICD9) || (sys < p.Get("sysTarget") && dias < p.Get("diasTarget")) {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func hypertensionBPControl() *indicator.Definition {
	return &indicator.Definition{
		ID: "hypertension-bp-control",
		Label: func(p indicator.Params) string {
			return "Hypertensive patients with BP < " + p.S("sysTarget") + "/" + p.S("diasTarget")
		},
		LongLabel: func(p indicator.Params) string {
			return "% of patients diagnosed with hypertension and with BP less than " + p.S("sysTarget") + "/" + p.S("diasTarget")
		},
		Columns:    []string{"Systolic BP", "Diastolic BP", "Problem List"},
		Params:     indicator.Params{"sysTarget": 140, "diasTarget": 90},
		Modifiable: []string{"sysTarget", "diasTarget"},
		Defaults:   []float64{140, 90},
		Benchmark:  ptr(indicator.AvgBPUnderControl),
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if !strings.Contains(a[2], hypertensionICD9) || a[0] == "" {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[0]) < p.Get("sysTarget") && num(a[1]) < p.Get("diasTarget"))
		},
	}
}
