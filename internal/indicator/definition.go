package indicator

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownParam is returned when editing a parameter the indicator does
	// not expose for modification.
	ErrUnknownParam = errors.New("unknown indicator parameter")

	// ErrNoProjection is returned by GetPlotData for indicators without a plot.
	ErrNoProjection = errors.New("indicator has no plot projection")
)

// Args holds one patient's cells, aligned with Definition.Columns.
type Args []string

// Predicate decides the outcome for one patient. It receives a snapshot of
// the indicator's parameters and must map parse failures to NotApplicable.
type Predicate func(a Args, p Params, env Env) TriState

// LabelFunc renders a label from the current parameter values.
type LabelFunc func(p Params) string

// Definition is a single clinical quality indicator.
type Definition struct {
	ID        string
	Label     LabelFunc
	LongLabel LabelFunc

	// Columns are the dataset columns the predicate needs, in argument order.
	Columns []string

	// Params holds the current values. Once a definition is shared, read it
	// through Snapshot and change it through SetParam or ResetToDefault.
	Params Params

	// Modifiable lists the user-editable params; Defaults is aligned with it.
	Modifiable []string
	Defaults   []float64

	Predicate  Predicate
	Projection *Projection

	// Benchmark is a literature average plotted alongside the result.
	Benchmark *float64
	Goal      *float64

	mu sync.RWMutex
}

// Snapshot returns a copy of the current parameters.
func (d *Definition) Snapshot() Params {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.Params.Clone()
}

// ShortLabel is the axis label for the indicator.
func (d *Definition) ShortLabel() string {
	return d.Label(d.Snapshot())
}

// Tooltip is the long description, falling back to the short label.
func (d *Definition) Tooltip() string {
	p := d.Snapshot()
	if d.LongLabel != nil {
		return d.LongLabel(p)
	}
	return d.Label(p)
}

// IsModifiable reports whether name can be edited by users.
func (d *Definition) IsModifiable(name string) bool {
	for _, m := range d.Modifiable {
		if m == name {
			return true
		}
	}
	return false
}

// SetParam changes one user-editable parameter.
func (d *Definition) SetParam(name string, value float64) error {
	if !d.IsModifiable(name) {
		return fmt.Errorf("%s: %w: %s", d.ID, ErrUnknownParam, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Params == nil {
		d.Params = Params{}
	}
	d.Params[name] = value
	return nil
}

// ResetToDefault restores every modifiable parameter to its default, pairing
// Modifiable and Defaults by position.
func (d *Definition) ResetToDefault() {
	if len(d.Modifiable) == 0 || len(d.Defaults) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Params == nil {
		d.Params = Params{}
	}
	for i, name := range d.Modifiable {
		if i >= len(d.Defaults) {
			break
		}
		d.Params[name] = d.Defaults[i]
	}
}

// Evaluate runs the predicate for one patient. A panic inside the predicate
// is contained here and reported as NotApplicable.
func (d *Definition) Evaluate(a Args, p Params, env Env) (res TriState) {
	defer func() {
		if r := recover(); r != nil {
			res = NotApplicable
		}
	}()
	return d.Predicate(a, p, env)
}

// Set is a named group of indicators presented together.
type Set struct {
	Name    string
	Members []*Definition
}

// Find returns the member with the given id.
func (s *Set) Find(id string) *Definition {
	for _, d := range s.Members {
		if d.ID == id {
			return d
		}
	}
	return nil
}
