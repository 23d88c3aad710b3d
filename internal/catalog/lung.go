package catalog

import (
	"strings"

	"github.com/cdreport/cdreport/internal/indicator"
)

// isSmoker reads the Risk Factors cell according to how each EMR codes
// smoking status. Accuro exports carry no usable code, so nobody is excluded.
func isSmoker(factors string, env indicator.Env, oscarMarkers ...string) bool {
	f := strings.ToLower(factors)
	switch {
	case env.IsPSS():
		return strings.Contains(f, "current smoker")
	case env.IsOscar():
		for _, m := range oscarMarkers {
			if strings.Contains(f, m) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func smokingStatusRecorded() *indicator.Definition {
	return &indicator.Definition{
		ID: "smoking-status-recorded",
		Label: func(p indicator.Params) string {
			return "Smoking Status Recorded for patients ≥ " + p.S("age")
		},
		LongLabel: func(p indicator.Params) string {
			return "Smoking Status Recorded in Risk Factors for patients over the age of " + p.S("age")
		},
		Columns:    []string{"Risk Factors", "Age"},
		Params:     indicator.Params{"age": 12},
		Modifiable: []string{"age"},
		Defaults:   []float64{12},
		Predicate: func(a indicator.Args, p indicator.Params, env indicator.Env) indicator.TriState {
			if num(a[1]) < p.Get("age") {
				return indicator.NotApplicable
			}
			if env.IsOscar() {
				return indicator.FromBool(a[0] != "")
			}
			return indicator.FromBool(contains(a[0], "smok"))
		},
	}
}

// The cessation form must be recent for smokers who were seen in the window.
func smokingCessation() *indicator.Definition {
	return &indicator.Definition{
		ID: "smoking-cessation",
		Label: func(p indicator.Params) string {
			return "Smoking Cessation Attempted within past " + p.S("months") + " months"
		},
		LongLabel: func(p indicator.Params) string {
			return "Smoking Cessation form performed within past " + p.S("months") +
				" months for smokers who have seen their doctor in that time"
		},
		Columns:    []string{"Risk Factors", "Smoking Cessation Date", "Last Seen Date", "Current Date"},
		Params:     indicator.Params{"months": 15},
		Modifiable: []string{"months"},
		Defaults:   []float64{15},
		Benchmark:  ptr(indicator.AvgSmokingCessation),
		Predicate: func(a indicator.Args, p indicator.Params, env indicator.Env) indicator.TriState {
			factors, form, lastSeen, current := a[0], a[1], a[2], a[3]
			months := p.Int("months")
			if !isSmoker(factors, env, "yes") || measuredWithin(current, months, lastSeen) != indicator.Pass {
				return indicator.NotApplicable
			}
			return measuredWithin(current, months, form)
		},
	}
}

func adultSmokersPneumovax() *indicator.Definition {
	return &indicator.Definition{
		ID: "adult-smokers-pneumovax",
		Label: func(p indicator.Params) string {
			return "Smokers > " + p.S("minAge") + " vaccinated with Pneumovax"
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients over the age of " + p.S("minAge") + " who smoke and are vaccinated for pneumonia"
		},
		Columns:    []string{"Age", "Risk Factors", "pneumococcal polysaccharide"},
		Params:     indicator.Params{"minAge": 18},
		Modifiable: []string{"minAge"},
		Defaults:   []float64{18},
		Predicate: func(a indicator.Args, p indicator.Params, env indicator.Env) indicator.TriState {
			age := num(a[0])
			if age <= p.Get("minAge") || !isSmoker(a[1], env, "current", "yes") {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[2]) > 0)
		},
	}
}

func seniorsPneumovax() *indicator.Definition {
	return &indicator.Definition{
		ID: "seniors-pneumovax",
		Label: func(p indicator.Params) string {
			return "Seniors > " + p.S("minAge") + " vaccinated with Pneumovax"
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients over the age of " + p.S("minAge") + " and are vaccinated for pneumonia"
		},
		Columns:    []string{"Age", "pneumococcal polysaccharide"},
		Params:     indicator.Params{"minAge": 65},
		Modifiable: []string{"minAge"},
		Defaults:   []float64{65},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if num(a[0]) <= p.Get("minAge") {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[1]) > 0)
		},
	}
}

func lungDiseasePneumovax() *indicator.Definition {
	return &indicator.Definition{
		ID: "lung-disease-pneumovax",
		Label: func(p indicator.Params) string {
			return "Adults > " + p.S("minAge") + " with COPD/Asthma vaccinated with Pneumovax"
		},
		LongLabel: func(p indicator.Params) string {
			return "Patients over the age of " + p.S("minAge") + " who have COPD or asthma and are vaccinated for pneumonia"
		},
		Columns:    []string{"Age", "Problem List", "pneumococcal polysaccharide"},
		Params:     indicator.Params{"minAge": 18},
		Modifiable: []string{"minAge"},
		Defaults:   []float64{18},
		Predicate: func(a indicator.Args, p indicator.Params, _ indicator.Env) indicator.TriState {
			if num(a[0]) <= p.Get("minAge") || !lungDiseaseRe.MatchString(strings.ToLower(a[1])) {
				return indicator.NotApplicable
			}
			return indicator.FromBool(num(a[2]) > 0)
		},
	}
}

// Smokers already diagnosed with a lung disease are not screened.
func lungHealthScreen() *indicator.Definition {
	return &indicator.Definition{
		ID: "lung-health-screen",
		Label: func(p indicator.Params) string {
			return "Lung Health Screening for smokers > " + p.S("age")
		},
		LongLabel: func(p indicator.Params) string {
			return "Lung Health Screening performed for smokers over the age of " + p.S("age")
		},
		Columns:    []string{"Risk Factors", "Problem List", "COPD Screening Date", "Current Date", "Age"},
		Params:     indicator.Params{"age": 40, "months": 24},
		Modifiable: []string{"age"},
		Predicate: func(a indicator.Args, p indicator.Params, env indicator.Env) indicator.TriState {
			factors, problems, screened, current := a[0], a[1], a[2], a[3]
			if num(a[4]) <= p.Get("age") ||
				!isSmoker(factors, env, "current", "yes") ||
				lungDiseaseRe.MatchString(strings.ToLower(problems)) {
				return indicator.NotApplicable
			}
			return measuredWithin(current, p.Int("months"), screened)
		},
	}
}
