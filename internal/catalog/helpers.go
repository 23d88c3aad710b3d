package catalog

import (
	"math"
	"regexp"
	"strings"

	"github.com/cdreport/cdreport/internal/dates"
	"github.com/cdreport/cdreport/internal/indicator"
)

// lungDiseaseRe matches COPD, asthma and chronic bronchitis by name or ICD-9.
var lungDiseaseRe = regexp.MustCompile(`copd|asthma|chronic bronchitis|490|491|492|493|494|496`)

// measuredWithin is WithinDateRange for indicators where a measurement that
// was never taken is a failure rather than not applicable.
func measuredWithin(current string, months int, measured string) indicator.TriState {
	if strings.TrimSpace(measured) == "" {
		return indicator.Fail
	}
	return dates.WithinDateRange(current, months, measured)
}

func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}

func num(s string) float64 {
	return indicator.Number(s)
}

func ptr(v float64) *float64 {
	return &v
}

// monthsAgo projects a measurement date to months before the report date.
func monthsAgo(current, measured string) float64 {
	n, ok := dates.MonthsDifference(current, measured)
	if !ok {
		return nan()
	}
	return float64(n)
}

func nan() float64 {
	return math.NaN()
}
