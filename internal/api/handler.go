package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/reconciler"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

// Handler handles API requests
type Handler struct {
	store    storage.ProcessedStore
	recorder *metrics.Recorder
	plotsDir string
	logger   *slog.Logger
}

// NewHandler creates a new API handler. plotsDir may be empty to disable chart serving.
func NewHandler(store storage.ProcessedStore, recorder *metrics.Recorder, plotsDir string, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		recorder: recorder,
		plotsDir: plotsDir,
		logger:   logger,
	}
}

// HealthCheck returns the health status
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// ListSeries returns the keys of every processed series
// GET /api/v1/series
func (h *Handler) ListSeries(c *gin.Context) {
	keys, err := h.store.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": keys,
	})
}

// GetSeries returns one canonical series, optionally restricted to a date range
// GET /api/v1/repos/:owner/:name/series/:metric?start=&end=
func (h *Handler) GetSeries(c *gin.Context) {
	series, ok := h.loadSeries(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": series,
	})
}

// GetSummary returns summary statistics of one canonical series
// GET /api/v1/repos/:owner/:name/summary/:metric?start=&end=
func (h *Handler) GetSummary(c *gin.Context) {
	series, ok := h.loadSeries(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": reconciler.Summarize(series),
	})
}

// GetPopularity returns the popularity samples of a repository
// GET /api/v1/repos/:owner/:name/popularity
func (h *Handler) GetPopularity(c *gin.Context) {
	repo, err := parseRepository(c)
	if err != nil {
		respondError(c, err)
		return
	}

	series, err := h.store.ReadPopularity(c.Request.Context(), repo)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": series,
	})
}

// Metrics refreshes the canonical entry gauges from the store and serves the registry
// GET /metrics
func (h *Handler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.store.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	for _, key := range keys {
		series, err := h.store.ReadSeries(ctx, key.Repository, key.Metric)
		if err != nil {
			h.logger.Warn("skipping series in metrics refresh", "series", key.String(), "error", err)
			continue
		}
		h.recorder.CanonicalEntries(key, len(series.Entries))
	}

	h.recorder.Handler().ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) loadSeries(c *gin.Context) (*domain.Series, bool) {
	repo, err := parseRepository(c)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	metric, err := domain.ParseMetric(c.Param("metric"))
	if err != nil {
		respondError(c, apperrors.NewBadRequestError(err.Error()))
		return nil, false
	}
	dateRange, err := parseDateRange(c)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	series, err := h.store.ReadSeries(c.Request.Context(), repo, metric)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return series.Filter(dateRange), true
}

func parseRepository(c *gin.Context) (domain.Repository, error) {
	repo, err := domain.ParseRepository(c.Param("owner") + "/" + c.Param("name"))
	if err != nil {
		return domain.Repository{}, apperrors.NewBadRequestError(err.Error())
	}
	return repo, nil
}

// parseDateRange reads the optional start and end query parameters (YYYY-MM-DD, inclusive)
func parseDateRange(c *gin.Context) (domain.DateRange, error) {
	r := domain.DateRange{Start: c.Query("start"), End: c.Query("end")}
	for _, d := range []string{r.Start, r.End} {
		if d == "" {
			continue
		}
		if _, err := domain.ParseDate(d); err != nil {
			return domain.DateRange{}, apperrors.NewBadRequestError(err.Error())
		}
	}
	if r.Start != "" && r.End != "" && r.Start > r.End {
		return domain.DateRange{}, apperrors.NewBadRequestError("start must not be after end")
	}
	return r, nil
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch appErr.Code {
		case apperrors.ErrCodeNotFound:
			status = http.StatusNotFound
		case apperrors.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case apperrors.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case apperrors.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
