package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	models "FinProfile/internal/domain/models"
	"FinProfile/internal/usecase"
	"FinProfile/pkg/cache"
	xhttp "FinProfile/pkg/http"
	xlogger "FinProfile/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	naked      []models.NakedPOC
	nakedCalls int
	counters   map[string]models.HostCounters
}

func (f *fakeQueries) Snapshot(symbol string, withProfile bool) (models.ProfileSnapshot, error) {
	if symbol != "AAPL" {
		return models.ProfileSnapshot{}, fmt.Errorf("%w: %s", usecase.ErrUnknownSymbol, symbol)
	}
	snap := models.ProfileSnapshot{Symbol: symbol, Ready: true, LastPrice: 190.25}
	if withProfile {
		snap.Profile = []models.PriceLevel{{Price: 190.25, Volume: 10}}
	}
	return snap, nil
}

func (f *fakeQueries) NakedPOCs(symbol string, limit int) ([]models.NakedPOC, error) {
	f.nakedCalls++
	if symbol != "AAPL" {
		return nil, fmt.Errorf("%w: %s", usecase.ErrUnknownSymbol, symbol)
	}
	out := f.naked
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQueries) SetCounters(_ context.Context, symbol string, c models.HostCounters) error {
	if symbol != "AAPL" {
		return fmt.Errorf("%w: %s", usecase.ErrUnknownSymbol, symbol)
	}
	if f.counters == nil {
		f.counters = make(map[string]models.HostCounters)
	}
	f.counters[symbol] = c
	return nil
}

func (f *fakeQueries) Symbols() []string { return []string{"AAPL"} }

func newTestServer(q ProfileQueries, c cache.Service) *xhttp.Server {
	h := NewProfileEchoHandler(xlogger.Nop(), q)
	if c != nil {
		h.SetCache(c, time.Minute)
	}
	return xhttp.NewServer([]xhttp.Handler{h}, xhttp.WithMetricsPath(""))
}

func do(t *testing.T, s *xhttp.Server, method, target, body string) (int, xhttp.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestProfileEndpoint(t *testing.T) {
	s := newTestServer(&fakeQueries{}, nil)

	code, resp := do(t, s, http.MethodGet, "/api/profile?symbol=AAPL&levels=true", "")
	require.Equal(t, http.StatusOK, code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Len(t, data["profile"], 1)

	code, _ = do(t, s, http.MethodGet, "/api/profile?symbol=TSLA", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, s, http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestNakedEndpointCachesResponses(t *testing.T) {
	q := &fakeQueries{naked: []models.NakedPOC{
		{Symbol: "AAPL", Price: 188, Strength: 0.4},
		{Symbol: "AAPL", Price: 185, Strength: 0.2},
	}}
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := newTestServer(q, mc)

	for i := 0; i < 2; i++ {
		code, resp := do(t, s, http.MethodGet, "/api/naked?symbol=AAPL&limit=1", "")
		require.Equal(t, http.StatusOK, code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(1), data["total"])
	}
	assert.Equal(t, 1, q.nakedCalls)

	code, _ := do(t, s, http.MethodGet, "/api/naked?symbol=AAPL&limit=0", "")
	assert.Equal(t, http.StatusOK, code, "zero limit falls back to the default")
	code, _ = do(t, s, http.MethodGet, "/api/naked?symbol=AAPL&limit=501", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCountersEndpoint(t *testing.T) {
	q := &fakeQueries{}
	s := newTestServer(q, nil)

	code, _ := do(t, s, http.MethodPut, "/api/counters", `{"symbol":"AAPL","daily_positions":2,"consecutive_losses":1}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, models.HostCounters{DailyPositions: 2, ConsecutiveLosses: 1}, q.counters["AAPL"])

	code, _ = do(t, s, http.MethodPut, "/api/counters", `{"symbol":"AAPL","daily_positions":-1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, s, http.MethodPut, "/api/counters", `{"symbol":"MSFT","daily_positions":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotContains(t, q.counters, "MSFT")
}

func TestSymbolsEndpoint(t *testing.T) {
	s := newTestServer(&fakeQueries{}, nil)
	code, resp := do(t, s, http.MethodGet, "/api/symbols", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{"AAPL"}, resp.Data.(map[string]interface{})["rows"])
}
