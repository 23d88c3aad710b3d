package api

import (
	"github.com/cdreport/cdreport/internal/indicator"
)

type ParamView struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Value   float64  `json:"value"`
	Default *float64 `json:"default,omitempty"`
}

type IndicatorView struct {
	ID         string             `json:"id"`
	Label      string             `json:"label"`
	Tooltip    string             `json:"tooltip"`
	Columns    []string           `json:"columns"`
	Params     map[string]float64 `json:"params"`
	Modifiable []ParamView        `json:"modifiable"`
	HasPlot    bool               `json:"has_plot"`
	Benchmark  *float64           `json:"benchmark,omitempty"`
	Goal       *float64           `json:"goal,omitempty"`
}

type SetView struct {
	Name       string          `json:"name"`
	Indicators []IndicatorView `json:"indicators"`
}

func newIndicatorView(d *indicator.Definition) IndicatorView {
	p := d.Snapshot()
	v := IndicatorView{
		ID:        d.ID,
		Label:     d.Label(p),
		Tooltip:   d.Label(p),
		Columns:   d.Columns,
		Params:    p,
		HasPlot:   d.Projection != nil,
		Benchmark: d.Benchmark,
		Goal:      d.Goal,
	}
	if d.LongLabel != nil {
		v.Tooltip = d.LongLabel(p)
	}
	if v.Params == nil {
		v.Params = map[string]float64{}
	}
	v.Modifiable = make([]ParamView, 0, len(d.Modifiable))
	for i, key := range d.Modifiable {
		pv := ParamView{Key: key, Name: indicator.DisplayName(key), Value: p[key]}
		if i < len(d.Defaults) {
			def := d.Defaults[i]
			pv.Default = &def
		}
		v.Modifiable = append(v.Modifiable, pv)
	}
	return v
}

func newSetView(s *indicator.Set) SetView {
	v := SetView{Name: s.Name, Indicators: make([]IndicatorView, 0, len(s.Members))}
	for _, d := range s.Members {
		v.Indicators = append(v.Indicators, newIndicatorView(d))
	}
	return v
}
