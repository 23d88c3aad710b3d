// Package ingest turns uploaded registry exports into datasets. It checks the
// declared media type, reads delimited text or the first sheet of a workbook,
// and drops files that carry no patient rows.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/dataset"
)

var (
	// ErrInvalidFile means the file is absent or not text or spreadsheet data.
	ErrInvalidFile = errors.New("invalid file type")

	// ErrNoPatientRecords means every file in a batch was empty or rejected.
	ErrNoPatientRecords = errors.New("no patient records found")
)

// Format is how a file's bytes are read.
type Format int

const (
	FormatText Format = iota
	FormatWorkbook
)

const (
	mediaTypeExcel    = "application/vnd.ms-excel"
	mediaTypeWorkbook = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mediaTypeOctet    = "application/octet-stream"
)

var extMediaTypes = map[string]string{
	".csv":  "text/csv",
	".txt":  "text/plain",
	".tsv":  "text/tab-separated-values",
	".xls":  mediaTypeExcel,
	".xlsx": mediaTypeWorkbook,
}

// MediaTypeForName guesses a media type from a file extension.
func MediaTypeForName(name string) string {
	return extMediaTypes[strings.ToLower(filepath.Ext(name))]
}

// CheckMediaType accepts text-like and spreadsheet-like files. Browsers label
// CSV uploads as application/vnd.ms-excel, so that type is read as text. An
// empty or generic binary type falls back to the file extension.
func CheckMediaType(name, mediaType string) (Format, error) {
	if strings.TrimSpace(name) == "" && strings.TrimSpace(mediaType) == "" {
		return 0, fmt.Errorf("%w: no file", ErrInvalidFile)
	}
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if mt == "" || mt == mediaTypeOctet {
		mt = MediaTypeForName(name)
	}

	switch {
	case strings.HasPrefix(mt, "text/"), mt == mediaTypeExcel:
		return FormatText, nil
	case mt == mediaTypeWorkbook:
		return FormatWorkbook, nil
	}
	return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidFile, name, mediaType)
}

// Source is one uploaded file.
type Source struct {
	Name      string
	MediaType string
	Body      io.Reader
}

// Batch is the outcome of loading several files.
type Batch struct {
	Datasets []*dataset.Dataset
	// Skipped aggregates the per-file failures; nil when every file loaded.
	Skipped error
}

// SkippedReasons lists the per-file failures as messages.
func (b *Batch) SkippedReasons() []string {
	var merr *multierror.Error
	if !errors.As(b.Skipped, &merr) {
		return nil
	}
	out := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Loader reads files into datasets.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a Loader that logs through logger.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger.With().Str("component", "ingest").Logger()}
}

// Load reads one file.
func (l *Loader) Load(src Source) (*dataset.Dataset, error) {
	if src.Body == nil {
		return nil, fmt.Errorf("%w: %s: no content", ErrInvalidFile, src.Name)
	}
	format, err := CheckMediaType(src.Name, src.MediaType)
	if err != nil {
		return nil, err
	}

	var records [][]string
	switch format {
	case FormatWorkbook:
		records, err = ReadWorkbook(src.Body)
	default:
		records, err = ReadDelimited(src.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name, err)
	}
	return dataset.FromRecords(src.Name, records, l.logger)
}

// LoadFile reads a file from disk, inferring its media type from the name.
func (l *Loader) LoadFile(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(Source{Name: filepath.Base(path), MediaType: MediaTypeForName(path), Body: f})
}

// LoadAll reads every source in order. Files that fail are skipped and
// reported in Batch.Skipped; the batch only fails when nothing loaded.
func (l *Loader) LoadAll(srcs []Source) (*Batch, error) {
	return l.collect(len(srcs), func(i int) (string, *dataset.Dataset, error) {
		ds, err := l.Load(srcs[i])
		return srcs[i].Name, ds, err
	})
}

// LoadFiles reads paths from disk with the same aggregation as LoadAll.
func (l *Loader) LoadFiles(paths []string) (*Batch, error) {
	return l.collect(len(paths), func(i int) (string, *dataset.Dataset, error) {
		ds, err := l.LoadFile(paths[i])
		return paths[i], ds, err
	})
}

func (l *Loader) collect(n int, load func(i int) (string, *dataset.Dataset, error)) (*Batch, error) {
	var (
		batch   Batch
		skipped *multierror.Error
	)
	for i := 0; i < n; i++ {
		name, ds, err := load(i)
		if err != nil {
			l.logger.Warn().Str("file", name).Err(err).Msg("file skipped")
			skipped = multierror.Append(skipped, err)
			continue
		}
		l.logger.Info().Str("file", name).Int("rows", ds.RowCount()).Msg("file loaded")
		batch.Datasets = append(batch.Datasets, ds)
	}
	batch.Skipped = skipped.ErrorOrNil()

	if len(batch.Datasets) == 0 {
		if batch.Skipped != nil {
			return &batch, fmt.Errorf("%w: %w", ErrNoPatientRecords, batch.Skipped)
		}
		return &batch, ErrNoPatientRecords
	}
	return &batch, nil
}
