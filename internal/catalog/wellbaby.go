package catalog

import (
	"github.com/cdreport/cdreport/internal/indicator"
)

// The 18 month visit is recorded either as an A002A billing or a Rourke form.
func wellBabyVisit() *indicator.Definition {
	return &indicator.Definition{
		ID: "well-baby-visit",
		Label: func(p indicator.Params) string {
			return "Well Baby Visit for infants " + p.S("minAge") + " to " + p.S("maxAge") + " years old"
		},
		LongLabel: func(p indicator.Params) string {
			return "Percent of children " + p.S("minAge") + " to " + p.S("maxAge") + " who have completed their 18 month well baby visit"
		},
		Columns:    []string{"Age", "A002A", "Rourke"},
		Params:     indicator.Params{"minAge": 2, "maxAge": 3},
		Modifiable: []string{"minAge", "maxAge"},
		Defaults:   []float64{2, 3},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			age := num(a[0])
			if !(age >= p.Get("minAge") && age <= p.Get("maxAge")) {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[1]) != 0 || num(a[2]) != 0)
		},
	}
}
