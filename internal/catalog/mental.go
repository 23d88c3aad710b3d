package catalog

import (
	"strings"

	"github.com/cdreport/cdreport/internal/indicator"
)

// More than one PHQ9 form, or a single recent one, indicates follow-up.
func phq9FollowUp() *indicator.Definition {
	return &indicator.Definition{
		ID: "phq9-follow-up",
		Label: func(indicator.Params) string {
			return "Patients with multiple PHQ9 forms"
		},
		LongLabel: func(indicator.Params) string {
			return "Adult patients who have depression and have filled out at least one PHQ9 form" +
				" have more than one PHQ9 form. This is an indication it is being used for follow-up"
		},
		Columns:    []string{"Current Date", "PHQ9 Dates", "PHQ9 Occurrences"},
		Params:     indicator.Params{"months": 6},
		Modifiable: []string{"months"},
		Defaults:   []float64{6},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			current, screened, count := a[0], a[1], num(a[2])
			if count == 0 || screened == "" {
				return indicator.NotApplicable
			}
			if count == 1 && measuredWithin(current, p.Int("months"), screened) != indicator.Pass {
				return indicator.Fail
			}
			return indicator.Pass
		},
	}
}

// Outside PSS only patients in the export's filtered list are on ADHD
// medication.
func adhdMedReview() *indicator.Definition {
	return &indicator.Definition{
		ID: "adhd-med-review",
		Label: func(indicator.Params) string {
			return "Youth on ADHD meds annual checkup"
		},
		LongLabel: func(indicator.Params) string {
			return "Youth diagnosed with ADHD and on medications for ADHD who have had an annual visit"
		},
		Columns:    []string{"Current Date", "Last Seen Date", "Patient #"},
		Params:     indicator.Params{"months": 12},
		Modifiable: []string{"months"},
		Defaults:   []float64{12},
		Predicate: func(a indicator.Args, p indicator.Params, env indicator.Env) indicator.TriState {
			if !env.IsPSS() && !env.FilteredPatients[strings.TrimSpace(a[2])] {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], p.Int("months"), a[1])
		},
	}
}

func cymhScreening() *indicator.Definition {
	return &indicator.Definition{
		ID: "cymh-screening",
		Label: func(indicator.Params) string {
			return "Children with recent screening tool"
		},
		LongLabel: func(p indicator.Params) string {
			return "Children referred to the child and youth mental health services who" +
				" have had a screening tool done in the past " + p.S("years") + " years"
		},
		Columns:    []string{"Current Date", "Referral Date", "Last Screening"},
		Params:     indicator.Params{"years": 2},
		Modifiable: []string{"years"},
		Defaults:   []float64{2},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if a[1] == "" {
				return indicator.NotApplicable
			}
			return measuredWithin(a[0], int(p.Get("years")*12), a[2])
		},
	}
}
