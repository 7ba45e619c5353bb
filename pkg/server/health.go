package server

import (
	"context"
	"net/http"
	"sort"
	"time"

	xhttp "FinProfile/pkg/http"

	"github.com/labstack/echo/v4"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves GET /healthz from a set of named checks.
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: make(map[string]Check), timeout: timeout}
}

// Add registers a named check.
func (h *HealthHandler) Add(name string, c Check) {
	h.checks[name] = c
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

type componentStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	sort.Strings(names)

	status := http.StatusOK
	out := make([]componentStatus, 0, len(names))
	for _, n := range names {
		cs := componentStatus{Name: n, Status: "ok"}
		if err := h.checks[n](ctx); err != nil {
			cs.Status = "down"
			cs.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		out = append(out, cs)
	}
	return xhttp.DataResponse(c, status, out)
}
