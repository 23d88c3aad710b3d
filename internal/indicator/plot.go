package indicator

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/dataset"
)

// PlotKind selects the chart a projection feeds.
type PlotKind string

const (
	Histogram PlotKind = "histogram"
	Scatter   PlotKind = "scatter"
)

// Projection derives a chartable number per patient, independent of the
// pass/fail outcome. Histograms use Value; scatter plots use Point.
type Projection struct {
	Kind    PlotKind
	Columns []string
	Value   func(a Args, p Params) float64
	Point   func(a Args, p Params) (x, y float64)
	Label   string
	YLabel  string
}

// PlotData is the projection output handed to charting. NaN entries are
// already removed.
type PlotData struct {
	Kind       PlotKind  `json:"kind"`
	Values     []float64 `json:"values,omitempty"`
	XValues    []float64 `json:"x_values,omitempty"`
	YValues    []float64 `json:"y_values,omitempty"`
	AxisLabel  string    `json:"axis_label"`
	YAxisLabel string    `json:"y_axis_label,omitempty"`
}

// GetPlotData applies the indicator's projection to every row of ds.
func GetPlotData(d *Definition, ds *dataset.Dataset, logger zerolog.Logger) (PlotData, error) {
	proj := d.Projection
	if proj == nil {
		return PlotData{}, fmt.Errorf("%s: %w", d.ID, ErrNoProjection)
	}

	binding, err := ds.Bind(proj.Columns)
	if err != nil {
		logger.Warn().Str("indicator", d.ID).Str("source", ds.Source).Err(err).Msg("plot skipped")
		return PlotData{}, fmt.Errorf("%s: %w", d.ID, err)
	}

	p := d.Snapshot()
	out := PlotData{Kind: proj.Kind, AxisLabel: proj.Label, YAxisLabel: proj.YLabel}

	for row := 0; row < ds.RowCount(); row++ {
		args := Args(binding.Args(row))
		switch proj.Kind {
		case Scatter:
			x, y := safePoint(proj, args, p)
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			out.XValues = append(out.XValues, x)
			out.YValues = append(out.YValues, y)
		default:
			v := safeValue(proj, args, p)
			if math.IsNaN(v) {
				continue
			}
			out.Values = append(out.Values, v)
		}
	}
	return out, nil
}

func safeValue(proj *Projection, a Args, p Params) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			v = math.NaN()
		}
	}()
	if proj.Value == nil {
		return math.NaN()
	}
	return proj.Value(a, p)
}

func safePoint(proj *Projection, a Args, p Params) (x, y float64) {
	defer func() {
		if r := recover(); r != nil {
			x, y = math.NaN(), math.NaN()
		}
	}()
	if proj.Point == nil {
		return math.NaN(), math.NaN()
	}
	return proj.Point(a, p)
}

// IsNoProjection reports whether err came from an indicator without a plot.
func IsNoProjection(err error) bool {
	return errors.Is(err, ErrNoProjection)
}
