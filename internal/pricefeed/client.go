package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrUnavailable signals that no live quote could be produced. Callers fall
// back to the static table.
var ErrUnavailable = errors.New("pricefeed: quote unavailable")

// QuoteProvider returns the current unit price for a market instrument.
type QuoteProvider interface {
	Quote(ctx context.Context, instrument string) (decimal.Decimal, error)
}

// HTTPProvider fetches quotes from a JSON endpoint:
// GET {base}/quote?symbol={instrument} -> {"symbol": "...", "price": "13.25"}.
// A single attempt per call with a bounded timeout; excess call volume is
// shed by the limiter instead of queueing behind the feed.
type HTTPProvider struct {
	base    string
	client  *http.Client
	limiter *rate.Limiter
}

func NewHTTPProvider(baseURL string, timeout time.Duration, ratePerSec float64) *HTTPProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	var lim *rate.Limiter
	if ratePerSec > 0 {
		burst := int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return &HTTPProvider{
		base:    strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

func (p *HTTPProvider) Quote(ctx context.Context, instrument string) (decimal.Decimal, error) {
	if p.base == "" {
		return decimal.Zero, ErrUnavailable
	}
	if p.limiter != nil && !p.limiter.Allow() {
		return decimal.Zero, fmt.Errorf("%w: rate limited", ErrUnavailable)
	}
	u := p.base + "/quote?symbol=" + url.QueryEscape(instrument)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	var body struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, err
	}
	if body.Price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: missing price for %s", ErrUnavailable, instrument)
	}
	return body.Price, nil
}

// StaticProvider serves fixed instrument prices. Useful for tests and demos.
type StaticProvider map[string]float64

func (s StaticProvider) Quote(_ context.Context, instrument string) (decimal.Decimal, error) {
	v, ok := s[instrument]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}
	return decimal.NewFromFloat(v), nil
}
