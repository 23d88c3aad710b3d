package catalog

import (
	"github.com/cdreport/cdreport/internal/dates"
	"github.com/cdreport/cdreport/internal/indicator"
)

// Only patients whose height and weight were taken on the same day count.
func heightWeightLastImmunization() *indicator.Definition {
	return &indicator.Definition{
		ID: "height-weight-last-immunization",
		Label: func(p indicator.Params) string {
			return "Height and Weight at last immunization, patients " + p.S("minAge") + "-" + p.S("maxAge")
		},
		LongLabel: func(indicator.Params) string {
			return "Height and Weight measured at last immunization. Only applies to patients with height and weight measured on the same day"
		},
		Columns:    []string{"Age", "Current Date", "height date", "weight date", "measles date", "diphtheria date"},
		Params:     indicator.Params{"months": 12, "minAge": 2, "maxAge": 18},
		Modifiable: []string{"months", "minAge", "maxAge"},
		Defaults:   []float64{12, 2, 18},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			age, current, height, weight := num(a[0]), a[1], a[2], a[3]
			if height != weight || height == "" || age < p.Get("minAge") || age > p.Get("maxAge") {
				return indicator.NotApplicable
			}
			last, ok := dates.MostRecentDate(a[4], a[5])
			if !ok {
				return indicator.FromBool(measuredWithin(current, p.Int("months"), height) == indicator.Pass)
			}
			h, ok := dates.ToDate(height)
			if !ok {
				return indicator.Fail
			}
			return indicator.FromBool(!h.Before(last))
		},
	}
}

// Only diphtheria and measles doses are checked.
func infantImmunizations() *indicator.Definition {
	return &indicator.Definition{
		ID: "infant-immunizations",
		Label: func(p indicator.Params) string {
			return "Infants " + p.S("age") + " years old with all immunizations"
		},
		LongLabel: func(p indicator.Params) string {
			return "Infants " + p.S("age") + " years old with " + p.S("diphtheria") +
				" doses of diphtheria and " + p.S("measles") + " dose of measles"
		},
		Columns:    []string{"Age", "measles", "diphtheria"},
		Params:     indicator.Params{"age": 2, "diphtheria": 4, "measles": 1},
		Modifiable: []string{"age"},
		Defaults:   []float64{2},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			age, ok := dates.AgeFromCodedString(a[0])
			if !ok || float64(age) != p.Get("age") {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[1]) >= p.Get("measles") && num(a[2]) >= p.Get("diphtheria"))
		},
	}
}

func childImmunizations() *indicator.Definition {
	return &indicator.Definition{
		ID: "child-immunizations",
		Label: func(p indicator.Params) string {
			return "Children " + p.S("minAge") + "-" + p.S("maxAge") + " with all immunizations"
		},
		LongLabel: func(p indicator.Params) string {
			return "Children between " + p.S("minAge") + " and " + p.S("maxAge") + " with " +
				p.S("diphtheria") + " doses of diphtheria and " + p.S("measles") + " doses of measles"
		},
		Columns:    []string{"Age", "measles", "diphtheria"},
		Params:     indicator.Params{"minAge": 7, "maxAge": 13, "diphtheria": 5, "measles": 2},
		Modifiable: []string{"minAge", "maxAge"},
		Defaults:   []float64{7, 13},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			age, ok := dates.AgeFromCodedString(a[0])
			if !ok || float64(age) < p.Get("minAge") || float64(age) > p.Get("maxAge") {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[1]) >= p.Get("measles") && num(a[2]) >= p.Get("diphtheria"))
		},
	}
}

// The booster should have been given since age 14. Age is only known to the
// year, so the window opens at 13 to avoid missing doses.
func teenDiphtheriaBooster() *indicator.Definition {
	return &indicator.Definition{
		ID: "teen-diphtheria-booster",
		Label: func(p indicator.Params) string {
			return "Adults " + p.S("minAge") + "-" + p.S("maxAge") + " with diphtheria booster"
		},
		LongLabel: func(p indicator.Params) string {
			return "Adults between " + p.S("minAge") + " and " + p.S("maxAge") + " with diphtheria booster given since age 14"
		},
		Columns:    []string{"Current Date", "Age", "diphtheria date"},
		Params:     indicator.Params{"minAge": 18, "maxAge": 25},
		Modifiable: []string{"minAge", "maxAge"},
		Defaults:   []float64{18, 25},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			age, ok := dates.AgeFromCodedString(a[1])
			if !ok || float64(age) < p.Get("minAge") || float64(age) > p.Get("maxAge") {
				return indicator.NotApplicable
			}
			ago, ok := dates.MonthsDifference(a[0], a[2])
			if !ok {
				return indicator.Fail
			}
			return indicator.FromBool((age-13)*12 >= ago)
		},
	}
}
