// Package catalog holds the clinical indicator definitions and groups them
// into the named sets a registry export is evaluated against.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/cdreport/cdreport/internal/indicator"
)

var (
	// ErrMissingIdentityColumns is returned by Classify when the header lacks
	// the patient and doctor identifiers every export must carry.
	ErrMissingIdentityColumns = errors.New("missing Patient # or Doctor Number column")

	// ErrUnknownSet is returned by Lookup for a name no set carries.
	ErrUnknownSet = errors.New("unknown indicator set")

	// ErrUnknownIndicator is returned when an indicator id is not in the catalog.
	ErrUnknownIndicator = errors.New("unknown indicator")
)

// Set names, in presentation order.
const (
	SetDiabetes         = "Diabetes"
	SetHypertension     = "Hypertension"
	SetImmunizations    = "Immunizations"
	SetLungHealth       = "Lung Health"
	SetSmokingCessation = "Smoking Cessation"
	SetDepression       = "Depression"
	SetPreventativeCare = "Adult Preventative Care"
	SetWellBaby         = "Well Baby"
	SetADHD             = "ADHD"
	SetDiabetesFull     = "Diabetes (Full)"
)

const (
	patientNumberColumn = "Patient #"
	doctorNumberColumn  = "Doctor Number"
)

// classifyRule maps a header marker to the set it selects.
type classifyRule struct {
	markers []string
	set     string
}

// classifyOrder is tested top to bottom; the first marker found wins.
// Diabetes (Full) is never inferred and must be chosen by name.
var classifyOrder = []classifyRule{
	{markers: []string{"Hb A1C"}, set: SetDiabetes},
	{markers: []string{"Systolic BP"}, set: SetHypertension},
	{markers: []string{"height date", "measurements"}, set: SetImmunizations},
	{markers: []string{"COPD Screening Date"}, set: SetLungHealth},
	{markers: []string{"Smoking Cessation Date"}, set: SetSmokingCessation},
	{markers: []string{"PHQ9 Dates"}, set: SetDepression},
	{markers: []string{"Mammogram"}, set: SetPreventativeCare},
	{markers: []string{"Rourke"}, set: SetWellBaby},
}

// Catalog owns one instance of every indicator. An indicator that appears in
// several sets is the same *indicator.Definition in each, so a parameter edit
// made through one set is seen by all of them.
type Catalog struct {
	sets []*indicator.Set
	byID map[string]*indicator.Definition
}

// New builds a catalog with every indicator at its default parameters.
func New() *Catalog {
	var (
		dmAssessment = diabeticAssessment()
		a1c          = a1cMeasured()
		a1cGoal      = a1cTarget()
		ldl          = ldlMeasured()
		ldlGoal      = ldlTarget()
		smokeStatus  = smokingStatusRecorded()
		cessation    = smokingCessation()
	)

	sets := []*indicator.Set{
		{Name: SetDiabetes, Members: []*indicator.Definition{dmAssessment, a1c, a1cGoal, ldl}},
		{Name: SetHypertension, Members: []*indicator.Definition{
			baselineBP(), elevatedBPVisit(), hypertensionBPControl(),
		}},
		{Name: SetImmunizations, Members: []*indicator.Definition{
			heightWeightLastImmunization(), infantImmunizations(), childImmunizations(), teenDiphtheriaBooster(),
		}},
		{Name: SetLungHealth, Members: []*indicator.Definition{
			smokeStatus, cessation, adultSmokersPneumovax(), seniorsPneumovax(), lungDiseasePneumovax(), lungHealthScreen(),
		}},
		{Name: SetSmokingCessation, Members: []*indicator.Definition{smokeStatus, cessation}},
		{Name: SetDepression, Members: []*indicator.Definition{phq9FollowUp()}},
		{Name: SetPreventativeCare, Members: []*indicator.Definition{
			breastCancerScreening(), cervicalCancerScreening(), colorectalCancerScreening(), fluVaccine(),
		}},
		{Name: SetWellBaby, Members: []*indicator.Definition{wellBabyVisit()}},
		{Name: SetADHD, Members: []*indicator.Definition{adhdMedReview(), cymhScreening()}},
		{Name: SetDiabetesFull, Members: []*indicator.Definition{
			dmAssessment, a1c, a1cGoal, bpMeasured(), bpTarget(), ldl, ldlGoal,
			acrMeasured(), acrTarget(), egfrMeasured(), egfrTarget(), currentSmokers(),
		}},
	}

	c := &Catalog{sets: sets, byID: make(map[string]*indicator.Definition)}
	for _, s := range sets {
		for _, d := range s.Members {
			c.byID[d.ID] = d
		}
	}
	return c
}

// Sets returns every set in presentation order.
func (c *Catalog) Sets() []*indicator.Set {
	out := make([]*indicator.Set, len(c.sets))
	copy(out, c.sets)
	return out
}

// Lookup finds a set by name, ignoring case.
func (c *Catalog) Lookup(name string) (*indicator.Set, error) {
	name = strings.TrimSpace(name)
	for _, s := range c.sets {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSet, name)
}

// Indicator returns the definition with the given id.
func (c *Catalog) Indicator(id string) (*indicator.Definition, error) {
	d, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, id)
	}
	return d, nil
}

// Indicators returns every distinct definition, in first-appearance order.
func (c *Catalog) Indicators() []*indicator.Definition {
	seen := make(map[string]bool, len(c.byID))
	var out []*indicator.Definition
	for _, s := range c.sets {
		for _, d := range s.Members {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
		}
	}
	return out
}

// Classify picks the set for an export from its header row.
func (c *Catalog) Classify(header []string) (*indicator.Set, error) {
	if err := CheckIdentityColumns(header); err != nil {
		return nil, err
	}
	name := SetADHD
	for _, rule := range classifyOrder {
		if headerContainsAny(header, rule.markers) {
			name = rule.set
			break
		}
	}
	return c.Lookup(name)
}

// ApplyOverrides sets parameters from an id → {param: value} mapping.
// Parameter names match case-insensitively since config loaders fold keys.
// Valid entries are applied even when others fail.
func (c *Catalog) ApplyOverrides(overrides map[string]map[string]float64) error {
	var result *multierror.Error
	for id, params := range overrides {
		d, err := c.Indicator(id)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for name, v := range params {
			if err := d.SetParam(modifiableName(d, name), v); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

func modifiableName(d *indicator.Definition, name string) string {
	for _, m := range d.Modifiable {
		if strings.EqualFold(m, name) {
			return m
		}
	}
	return name
}

// ResetAll restores every indicator to its default parameters.
func (c *Catalog) ResetAll() {
	for _, d := range c.byID {
		d.ResetToDefault()
	}
}

// CheckIdentityColumns reports ErrMissingIdentityColumns unless the header
// has cells named exactly "Patient #" and "Doctor Number".
func CheckIdentityColumns(header []string) error {
	if !headerHas(header, patientNumberColumn) || !headerHas(header, doctorNumberColumn) {
		return ErrMissingIdentityColumns
	}
	return nil
}

func headerHas(header []string, name string) bool {
	for _, h := range header {
		if strings.TrimSpace(h) == name {
			return true
		}
	}
	return false
}

func headerContains(header []string, marker string) bool {
	for _, h := range header {
		if strings.Contains(h, marker) {
			return true
		}
	}
	return false
}

func headerContainsAny(header []string, markers []string) bool {
	for _, m := range markers {
		if headerContains(header, m) {
			return true
		}
	}
	return false
}
