package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FinProfile/internal/domain/models"
	domrepo "FinProfile/internal/domain/repository"
	xhttp "FinProfile/pkg/http"
)

// httpBar is the wire shape of one bar returned by the candles endpoint.
type httpBar struct {
	T int64   `json:"t"` // unix ms
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type httpBarsResponse struct {
	Bars []httpBar `json:"bars"`
}

// HTTPBarSource fetches bars from an HTTP candles endpoint:
// GET <url>?symbol=&from=&to=&size= returning {"bars":[{t,o,h,l,c,v}]}.
type HTTPBarSource struct {
	client *xhttp.Client
	url    string
}

var _ domrepo.BarSource = (*HTTPBarSource)(nil)

func NewHTTPBarSource(client *xhttp.Client, url string) *HTTPBarSource {
	return &HTTPBarSource{client: client, url: url}
}

func (s *HTTPBarSource) FetchBars(ctx context.Context, symbol string, from, to time.Time, size domrepo.BarSize) ([]models.Candle, error) {
	var resp httpBarsResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		URL: s.url,
		QueryParams: map[string][]string{
			"symbol": {symbol},
			"from":   {strconv.FormatInt(from.UnixMilli(), 10)},
			"to":     {strconv.FormatInt(to.UnixMilli(), 10)},
			"size":   {string(size)},
		},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}

	out := make([]models.Candle, 0, len(resp.Bars))
	for _, b := range resp.Bars {
		out = append(out, models.Candle{
			Bucket: time.UnixMilli(b.T).UTC(),
			Symbol: symbol,
			Open:   b.O,
			High:   b.H,
			Low:    b.L,
			Close:  b.C,
			Volume: b.V,
		})
	}
	return out, nil
}
