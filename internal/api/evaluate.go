package api

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"

	"github.com/cdreport/cdreport/internal/catalog"
	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/engine"
	"github.com/cdreport/cdreport/internal/indicator"
	"github.com/cdreport/cdreport/internal/ingest"
	"github.com/cdreport/cdreport/internal/platform/middleware"
	"github.com/cdreport/cdreport/internal/report"
)

const (
	mimeWorkbook = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeParquet  = "application/vnd.apache.parquet"
)

type EvaluateResponse struct {
	RunID     string                 `json:"run_id"`
	Summaries []report.Summary       `json:"summaries"`
	Results   []engine.DatasetResult `json:"results,omitempty"`
	Skipped   []string               `json:"skipped,omitempty"`
}

// Evaluate runs the uploaded exports. Each file is classified from its
// header unless the "set" form field names a set. The "format" query
// parameter selects json (default), xlsx or parquet output; "detail=true"
// adds per-patient outcomes to the JSON.
func (h *Handler) Evaluate(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
	}
	files := form.File["files"]
	if len(files) == 0 {
		return httpError(fmt.Errorf("%w: no files uploaded", ingest.ErrInvalidFile))
	}

	var explicit *indicator.Set
	if name := strings.TrimSpace(c.FormValue("set")); name != "" {
		if explicit, err = h.catalog.Lookup(name); err != nil {
			return httpError(err)
		}
	}

	batch, err := h.loadUploads(files)
	if batch != nil {
		h.recordRejections(batch.Skipped)
	}
	if err != nil {
		return httpError(err)
	}
	skipped := batch.SkippedReasons()

	var (
		jobs         []engine.Job
		datasets     []*dataset.Dataset
		unclassified *multierror.Error
	)
	for _, ds := range batch.Datasets {
		set, err := h.selectSet(explicit, ds)
		if err != nil {
			h.logger.Warn().Str("file", ds.Source).Err(err).Msg("file not classified")
			unclassified = multierror.Append(unclassified, fmt.Errorf("%s: %w", ds.Source, err))
			h.metrics.RecordRejection(rejectionReason(err))
			skipped = append(skipped, fmt.Sprintf("%s: %v", ds.Source, err))
			continue
		}
		jobs = append(jobs, engine.Job{Set: set, Dataset: ds})
		datasets = append(datasets, ds)
	}
	if len(jobs) == 0 {
		return httpError(unclassified.ErrorOrNil())
	}

	results := h.evaluator.RunJobs(jobs, h.sessions.Get())
	h.recordResults(results)
	annotate(c, results)
	summaries := report.Summarize(results)

	switch c.QueryParam("format") {
	case "xlsx":
		data, err := report.BuildWorkbook(summaries, report.Outcomes(results, datasets))
		if err != nil {
			return httpError(err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="indicators.xlsx"`)
		return c.Blob(http.StatusOK, mimeWorkbook, data)
	case "parquet":
		var buf bytes.Buffer
		if err := report.WriteParquet(&buf, report.Outcomes(results, datasets)); err != nil {
			return httpError(err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="outcomes.parquet"`)
		return c.Blob(http.StatusOK, mimeParquet, buf.Bytes())
	case "", "json":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json, xlsx or parquet")
	}

	resp := EvaluateResponse{RunID: results[0].RunID, Summaries: summaries, Skipped: skipped}
	if c.QueryParam("detail") == "true" {
		resp.Results = results
	}
	return c.JSON(http.StatusOK, resp)
}

// Plot returns the chart data for one indicator over an uploaded export.
func (h *Handler) Plot(c echo.Context) error {
	d, err := h.catalog.Indicator(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if d.Projection == nil {
		return httpError(fmt.Errorf("%s: %w", d.ID, indicator.ErrNoProjection))
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return httpError(fmt.Errorf("%w: %v", ingest.ErrInvalidFile, err))
	}
	ds, err := h.loadUpload(fh)
	if err != nil {
		return httpError(err)
	}
	data, err := indicator.GetPlotData(d, ds, h.logger)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, data)
}

func (h *Handler) recordResults(results []engine.DatasetResult) {
	for _, dr := range results {
		h.metrics.RecordEvaluation(dr.Set, dr.EMR, dr.RowCount)
		for _, r := range dr.Indicators {
			h.metrics.RecordOutcomes(r.IndicatorID, r.Passed, r.Total-r.Passed, r.NotApplicable)
		}
	}
}

// selectSet returns explicit when the caller named a set and classifies the
// export otherwise. Either way the export must carry the identity columns.
func (h *Handler) selectSet(explicit *indicator.Set, ds *dataset.Dataset) (*indicator.Set, error) {
	if explicit == nil {
		return h.catalog.Classify(ds.Names())
	}
	if err := catalog.CheckIdentityColumns(ds.Names()); err != nil {
		return nil, err
	}
	return explicit, nil
}

func annotate(c echo.Context, results []engine.DatasetResult) {
	if len(results) == 0 {
		return
	}
	sources := make([]string, len(results))
	for i, dr := range results {
		sources[i] = dr.Source
	}
	middleware.Annotate(c, results[0].RunID, sources)
}

func (h *Handler) recordRejections(skipped error) {
	var merr *multierror.Error
	if !errors.As(skipped, &merr) {
		return
	}
	for _, err := range merr.Errors {
		h.metrics.RecordRejection(rejectionReason(err))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ingest.ErrInvalidFile):
		return "invalid_file"
	case errors.Is(err, dataset.ErrEmptyDataset):
		return "no_patient_records"
	case errors.Is(err, catalog.ErrMissingIdentityColumns):
		return "missing_identity_columns"
	}
	return "unreadable"
}

func (h *Handler) loadUploads(files []*multipart.FileHeader) (*ingest.Batch, error) {
	srcs := make([]ingest.Source, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		defer f.Close()
		srcs = append(srcs, ingest.Source{Name: fh.Filename, MediaType: fh.Header.Get(echo.HeaderContentType), Body: f})
	}
	return h.loader.LoadAll(srcs)
}

func (h *Handler) loadUpload(fh *multipart.FileHeader) (*dataset.Dataset, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	ds, err := h.loader.Load(ingest.Source{Name: fh.Filename, MediaType: fh.Header.Get(echo.HeaderContentType), Body: f})
	if errors.Is(err, dataset.ErrEmptyDataset) {
		return nil, fmt.Errorf("%w: %w", ingest.ErrNoPatientRecords, err)
	}
	return ds, err
}
