package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	models "FinProfile/internal/domain/models"
	"FinProfile/internal/service/metrics"
	"FinProfile/internal/usecase"
	"FinProfile/pkg/cache"
	xhttp "FinProfile/pkg/http"
	xlogger "FinProfile/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ProfileQueries is the read side of the trade processor.
type ProfileQueries interface {
	Snapshot(symbol string, withProfile bool) (models.ProfileSnapshot, error)
	NakedPOCs(symbol string, limit int) ([]models.NakedPOC, error)
	SetCounters(ctx context.Context, symbol string, c models.HostCounters) error
	Symbols() []string
}

// ProfileEchoHandler serves profile snapshots, naked POCs and host counters.
type ProfileEchoHandler struct {
	logger   *xlogger.Logger
	queries  ProfileQueries
	cache    cache.Service
	cacheTTL time.Duration
}

func NewProfileEchoHandler(logger *xlogger.Logger, queries ProfileQueries) *ProfileEchoHandler {
	metrics.Register()
	return &ProfileEchoHandler{logger: logger, queries: queries}
}

// SetCache enables short-lived caching of naked POC responses.
func (h *ProfileEchoHandler) SetCache(c cache.Service, ttl time.Duration) {
	h.cache = c
	h.cacheTTL = ttl
}

func (h *ProfileEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/profile", h.Profile)
	g.GET("/naked", h.Naked)
	g.PUT("/counters", h.Counters)
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *ProfileEchoHandler) Symbols(c echo.Context) error {
	defer observe("symbols", time.Now())
	syms := h.queries.Symbols()
	return xhttp.ListResponse(c, syms, int64(len(syms)))
}

func (h *ProfileEchoHandler) Profile(c echo.Context) error {
	defer observe("profile", time.Now())
	req := &models.ProfileRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.queries.Snapshot(req.Symbol, req.Levels)
	if err != nil {
		return h.fail(c, "profile", req.Symbol, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, snap)
}

func (h *ProfileEchoHandler) Naked(c echo.Context) error {
	defer observe("naked", time.Now())
	req := &models.NakedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	key := cache.Key("api", "naked", req.Symbol, fmt.Sprint(req.Limit))
	if h.cache != nil {
		var cached []models.NakedPOC
		switch err := h.cache.Get(ctx, key, &cached); {
		case err == nil:
			h.logger.Debug("naked cache hit", xlogger.String("key", key))
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		case !errors.Is(err, cache.ErrCacheMiss):
			h.logger.Warn("naked cache get error", xlogger.Error(err))
		}
	}

	out, err := h.queries.NakedPOCs(req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "naked", req.Symbol, err)
	}
	if out == nil {
		out = []models.NakedPOC{}
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, out, h.cacheTTL); err != nil {
			h.logger.Warn("naked cache set error", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

func (h *ProfileEchoHandler) Counters(c echo.Context) error {
	defer observe("counters", time.Now())
	req := &models.CountersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	counters := models.HostCounters{
		DailyPositions:    req.DailyPositions,
		ConsecutiveLosses: req.ConsecutiveLosses,
	}
	if err := h.queries.SetCounters(c.Request().Context(), req.Symbol, counters); err != nil {
		return h.fail(c, "counters", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, counters)
}

func (h *ProfileEchoHandler) fail(c echo.Context, endpoint, symbol string, err error) error {
	metrics.APIErrors.WithLabelValues(endpoint).Inc()
	if errors.Is(err, usecase.ErrUnknownSymbol) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no profile for %s", symbol).WithError(err))
	}
	h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("profile query failed").WithError(err))
}
