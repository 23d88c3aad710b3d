package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyDataset means no patient rows remained after trimming.
	ErrEmptyDataset = errors.New("no patient records found")

	// ErrMissingColumn means a requested column is not in the dataset.
	ErrMissingColumn = errors.New("missing column")
)

var slashDateRe = regexp.MustCompile(`^[0-9]{2}/[0-9]{2}/[0-9]{4}`)

// Dataset is a column-oriented view of one registry export. Row i of every
// column belongs to the same patient.
type Dataset struct {
	Source string

	names    []string
	columns  map[string][]string
	rowCount int
}

// FromRecords builds a dataset from raw parsed rows, the first non-empty one
// being the header. A blank leading row and a blank trailing row are dropped.
func FromRecords(source string, records [][]string, logger zerolog.Logger) (*Dataset, error) {
	if len(records) > 0 && blankRow(records[0]) {
		records = records[1:]
	}
	if len(records) > 0 && blankRow(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDataset)
	}
	return Build(source, records[0], records[1:], logger)
}

// Build constructs the dataset from a header and data rows. Cells shaped like
// DD/MM/YYYY are rewritten as YYYY-MM-DD; everything else is kept verbatim,
// including empty strings which mean "not measured".
func Build(source string, header []string, rows [][]string, logger zerolog.Logger) (*Dataset, error) {
	ds := &Dataset{
		Source:   source,
		columns:  make(map[string][]string, len(header)),
		rowCount: len(rows),
	}

	// keep[i] is false for header positions shadowed by an earlier duplicate
	keep := make([]bool, len(header))
	for i, name := range header {
		if _, dup := ds.columns[name]; dup {
			logger.Warn().Str("source", source).Str("column", name).Msg("duplicate column ignored")
			continue
		}
		keep[i] = true
		ds.names = append(ds.names, name)
		ds.columns[name] = make([]string, 0, len(rows))
	}

	for _, row := range rows {
		for i, name := range header {
			if !keep[i] {
				continue
			}
			cell := ""
			if i < len(row) {
				cell = normalizeDate(row[i])
			}
			ds.columns[name] = append(ds.columns[name], cell)
		}
	}

	// One EMR exports a trailing column with no header.
	if _, ok := ds.columns[""]; ok {
		delete(ds.columns, "")
		ds.names = removeName(ds.names, "")
		logger.Debug().Str("source", source).Msg("dropped unnamed column")
	}

	if ds.rowCount == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrEmptyDataset)
	}
	return ds, nil
}

// normalizeDate converts DD/MM/YYYY (optionally followed by more text) into
// YYYY-MM-DD.
func normalizeDate(cell string) string {
	if !slashDateRe.MatchString(cell) {
		return cell
	}
	return cell[6:10] + "-" + cell[3:5] + "-" + cell[0:2] + cell[10:]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func removeName(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// RowCount is the number of patient records.
func (d *Dataset) RowCount() int { return d.rowCount }

// Names returns the column names in file order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Has reports whether the column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.columns[name]
	return ok
}

// Column returns the cells of one column.
func (d *Dataset) Column(name string) ([]string, bool) {
	col, ok := d.columns[name]
	return col, ok
}

// Missing returns the names in cols that the dataset does not have.
func (d *Dataset) Missing(cols []string) []string {
	var out []string
	for _, c := range cols {
		if !d.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Binding is a set of columns resolved once so that argument vectors can be
// assembled per row without name lookups.
type Binding struct {
	cols [][]string
}

// Bind resolves cols against the dataset.
func (d *Dataset) Bind(cols []string) (Binding, error) {
	if missing := d.Missing(cols); len(missing) > 0 {
		return Binding{}, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	b := Binding{cols: make([][]string, len(cols))}
	for i, c := range cols {
		b.cols[i] = d.columns[c]
	}
	return b, nil
}

// Args returns row's cells in binding order.
func (b Binding) Args(row int) []string {
	out := make([]string, len(b.cols))
	for i, col := range b.cols {
		out[i] = col[row]
	}
	return out
}

// Width is the number of bound columns.
func (b Binding) Width() int { return len(b.cols) }
