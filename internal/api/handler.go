// Package api exposes the indicator catalogue, session settings and
// evaluation over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/cdreport/cdreport/internal/catalog"
	"github.com/cdreport/cdreport/internal/dataset"
	"github.com/cdreport/cdreport/internal/engine"
	"github.com/cdreport/cdreport/internal/indicator"
	"github.com/cdreport/cdreport/internal/ingest"
	"github.com/cdreport/cdreport/internal/platform/auth"
	"github.com/cdreport/cdreport/pkg/pagination"
)

// Recorder receives evaluation counts for metrics.
type Recorder interface {
	RecordEvaluation(set, emr string, patients int)
	RecordOutcomes(indicatorID string, passed, failed, notApplicable int)
	RecordRejection(reason string)
}

type noopRecorder struct{}

func (noopRecorder) RecordEvaluation(string, string, int) {}
func (noopRecorder) RecordOutcomes(string, int, int, int) {}
func (noopRecorder) RecordRejection(string)               {}

type Handler struct {
	catalog   *catalog.Catalog
	evaluator *engine.Evaluator
	loader    *ingest.Loader
	sessions  *engine.SessionStore
	metrics   Recorder
	logger    zerolog.Logger
}

func NewHandler(cat *catalog.Catalog, ev *engine.Evaluator, loader *ingest.Loader, sessions *engine.SessionStore, logger zerolog.Logger) *Handler {
	return &Handler{
		catalog:   cat,
		evaluator: ev,
		loader:    loader,
		sessions:  sessions,
		metrics:   noopRecorder{},
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// WithRecorder reports evaluations to r.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	if r != nil {
		h.metrics = r
	}
	return h
}

// RegisterRoutes mounts the API on g. heavy wraps the upload endpoints,
// typically with a rate limit; it may be nil.
func (h *Handler) RegisterRoutes(g *echo.Group, heavy ...echo.MiddlewareFunc) {
	read := g.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleViewer))
	read.GET("/indicator-sets", h.ListSets)
	read.GET("/indicator-sets/:set", h.GetSet)
	read.GET("/indicators", h.ListIndicators)
	read.GET("/indicators/:id", h.GetIndicator)
	read.GET("/session", h.GetSession)
	read.GET("/param-names", h.ParamNames)

	upload := read.Group("", heavy...)
	upload.POST("/evaluate", h.Evaluate)
	upload.POST("/indicators/:id/plot", h.Plot)

	write := g.Group("", auth.RequireRole(auth.RolePhysician))
	write.PUT("/indicators/:id/params", h.UpdateParams)
	write.POST("/indicators/:id/reset", h.ResetParams)
	write.PUT("/session", h.UpdateSession)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListSets(c echo.Context) error {
	sets := h.catalog.Sets()
	out := make([]SetView, 0, len(sets))
	for _, s := range sets {
		out = append(out, newSetView(s))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetSet(c echo.Context) error {
	s, err := h.catalog.Lookup(c.Param("set"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newSetView(s))
}

func (h *Handler) ListIndicators(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.catalog.Indicators()
	page := pagination.Page(all, pg)
	out := make([]IndicatorView, 0, len(page))
	for _, d := range page {
		out = append(out, newIndicatorView(d))
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(out, len(all), pg.Limit, pg.Offset))
}

func (h *Handler) GetIndicator(c echo.Context) error {
	d, err := h.catalog.Indicator(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, newIndicatorView(d))
}

type updateParamsRequest struct {
	Params map[string]float64 `json:"params"`
}

// UpdateParams sets one or more editable parameters. Keys may be parameter
// keys or their display names. Nothing is applied unless every key is valid.
func (h *Handler) UpdateParams(c echo.Context) error {
	d, err := h.catalog.Indicator(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	var req updateParamsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Params) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no parameters given")
	}

	resolved := make(map[string]float64, len(req.Params))
	for name, v := range req.Params {
		key := name
		if !d.IsModifiable(key) {
			if k, ok := indicator.ParamKey(name); ok {
				key = k
			}
		}
		if !d.IsModifiable(key) {
			return httpError(d.SetParam(key, v))
		}
		resolved[key] = v
	}
	for key, v := range resolved {
		if err := d.SetParam(key, v); err != nil {
			return httpError(err)
		}
	}

	h.logger.Info().
		Str("indicator", d.ID).
		Str("user", auth.UserIDFromContext(c.Request().Context())).
		Interface("params", resolved).
		Msg("indicator parameters updated")
	return c.JSON(http.StatusOK, newIndicatorView(d))
}

func (h *Handler) ResetParams(c echo.Context) error {
	d, err := h.catalog.Indicator(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	d.ResetToDefault()
	h.logger.Info().Str("indicator", d.ID).Msg("indicator parameters reset")
	return c.JSON(http.StatusOK, newIndicatorView(d))
}

func (h *Handler) GetSession(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Get())
}

type sessionRequest struct {
	EMR          string `json:"emr"`
	RosteredOnly *bool  `json:"rostered_only"`
}

// UpdateSession changes the EMR format and roster filter. Omitted fields keep
// their current value.
func (h *Handler) UpdateSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	session := h.sessions.Get()
	if req.EMR != "" {
		emr, err := indicator.ParseEMR(req.EMR)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		session.EMR = emr
	}
	if req.RosteredOnly != nil {
		session.RosteredOnly = *req.RosteredOnly
	}
	h.sessions.Set(session)
	return c.JSON(http.StatusOK, h.sessions.Get())
}

func (h *Handler) ParamNames(c echo.Context) error {
	return c.JSON(http.StatusOK, indicator.ParamDisplayNames)
}

// httpError maps domain errors onto HTTP status codes.
func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, ingest.ErrNoPatientRecords),
		errors.Is(err, dataset.ErrEmptyDataset),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, catalog.ErrMissingIdentityColumns):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ingest.ErrInvalidFile):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, catalog.ErrUnknownIndicator),
		errors.Is(err, catalog.ErrUnknownSet):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, indicator.ErrUnknownParam),
		errors.Is(err, indicator.ErrNoProjection):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
