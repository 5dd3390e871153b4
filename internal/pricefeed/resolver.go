// Package pricefeed resolves delivery ports to LNG spot prices, falling back
// to a static per-marker table whenever a live quote cannot be fetched.
package pricefeed

import (
	"context"
	"log"
	"sync"

	"lngsched/internal/metrics"
)

// Table maps delivery ports to market markers, markers to quotable
// instruments, and carries the static fallback prices.
type Table struct {
	PortMarkers   map[string]string
	Instruments   map[string]string
	Fallback      map[string]float64
	DefaultMarker string
	DefaultPrice  float64
}

// DefaultTable returns the built-in market mapping.
func DefaultTable() Table {
	return Table{
		PortMarkers: map[string]string{
			"Yokohama":  "JKM",
			"Singapore": "SING",
			"Busan":     "JKM",
			"Mumbai":    "INDIA",
			"Rotterdam": "TTF",
		},
		Instruments: map[string]string{
			"JKM":   "JKM=F",
			"TTF":   "TTF=F",
			"INDIA": "NG=F",
			"SING":  "NG=F",
		},
		Fallback: map[string]float64{
			"JKM":   13.25,
			"SING":  12.80,
			"INDIA": 13.00,
			"TTF":   11.75,
		},
		DefaultMarker: "JKM",
		DefaultPrice:  12.00,
	}
}

// Price is a resolved unit price. Live reports whether it came from the quote
// provider rather than the static table.
type Price struct {
	Marker string
	Value  float64
	Live   bool
}

// Resolver turns a delivery port into a unit price. A nil provider resolves
// everything from the static table.
type Resolver struct {
	table    Table
	provider QuoteProvider
}

func NewResolver(table Table, provider QuoteProvider) *Resolver {
	if table.DefaultMarker == "" {
		table.DefaultMarker = "JKM"
	}
	return &Resolver{table: table, provider: provider}
}

// PriceFor resolves a single port. One quote attempt; any failure degrades to
// the static table and is reported only as a diagnostic, never an error.
func (r *Resolver) PriceFor(ctx context.Context, port string) Price {
	marker, ok := r.table.PortMarkers[port]
	if !ok {
		marker = r.table.DefaultMarker
	}
	value, ok := r.table.Fallback[marker]
	if !ok {
		value = r.table.DefaultPrice
	}
	p := Price{Marker: marker, Value: value}
	inst := r.table.Instruments[marker]
	if r.provider == nil || inst == "" {
		return p
	}
	q, err := r.provider.Quote(ctx, inst)
	if err != nil {
		log.Printf("pricefeed: spot quote failed for %s (%s), using fallback %.2f: %v", marker, inst, value, err)
		metrics.SpotQuotes.WithLabelValues(marker, "fallback").Inc()
		return p
	}
	p.Value, _ = q.Round(2).Float64()
	p.Live = true
	metrics.SpotQuotes.WithLabelValues(marker, "live").Inc()
	return p
}

// Session caches resolved prices per marker so a single optimization run sees
// consistent prices across destinations sharing a marker. Sessions are not
// reused across runs.
type Session struct {
	r     *Resolver
	mu    sync.Mutex
	cache map[string]Price
}

func (r *Resolver) Session() *Session {
	return &Session{r: r, cache: map[string]Price{}}
}

func (s *Session) PriceFor(ctx context.Context, port string) Price {
	marker, ok := s.r.table.PortMarkers[port]
	if !ok {
		marker = s.r.table.DefaultMarker
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.cache[marker]; ok {
		return p
	}
	p := s.r.PriceFor(ctx, port)
	s.cache[marker] = p
	return p
}
