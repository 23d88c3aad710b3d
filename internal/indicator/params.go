package indicator

import (
	"math"
	"strconv"
	"strings"
)

// Params maps parameter names (months, minAge, target, ...) to their values.
type Params map[string]float64

// Clone returns an independent copy so predicates can receive params by value.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Get returns the named value, or NaN if the parameter is not declared.
func (p Params) Get(name string) float64 {
	v, ok := p[name]
	if !ok {
		return math.NaN()
	}
	return v
}

// Int returns the named value truncated to an integer.
func (p Params) Int(name string) int {
	return int(p.Get(name))
}

// S formats the named value for labels: 6 prints as "6", 0.08 as "0.08".
func (p Params) S(name string) string {
	return FormatNumber(p.Get(name))
}

// FormatNumber renders a value in its shortest form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Number converts a cell to a number the way registry exports are read: a
// blank cell counts as zero and anything unparseable is NaN, so comparisons
// against it are always false.
func Number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParamDisplayNames maps parameter keys to the labels shown in editors.
var ParamDisplayNames = map[string]string{
	"minAge":       "Minimum Age",
	"maxAge":       "Maximum Age",
	"months":       "Months Since",
	"minAgeMonths": "Minimum Age (months)",
	"maxAgeMonths": "Maximum Age (months)",
	"sysTarget":    "Systolic BP Target",
	"diasTarget":   "Diastolic BP Target",
	"age":          "Age",
	"target":       "Target",
	"years":        "Years Since",
}

// DisplayName returns the editor label for key, or the key itself.
func DisplayName(key string) string {
	if name, ok := ParamDisplayNames[key]; ok {
		return name
	}
	return key
}

// ParamKey is the reverse of DisplayName.
func ParamKey(display string) (string, bool) {
	for k, v := range ParamDisplayNames {
		if strings.EqualFold(v, display) {
			return k, true
		}
	}
	return "", false
}
