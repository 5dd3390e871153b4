package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolverMapsPortsToMarkers(t *testing.T) {
	r := NewResolver(DefaultTable(), nil)
	cases := []struct {
		port   string
		marker string
		value  float64
	}{
		{"Yokohama", "JKM", 13.25},
		{"Busan", "JKM", 13.25},
		{"Singapore", "SING", 12.80},
		{"Mumbai", "INDIA", 13.00},
		{"Rotterdam", "TTF", 11.75},
		{"Zeebrugge", "JKM", 13.25}, // unmapped port, default marker
	}
	for _, c := range cases {
		p := r.PriceFor(context.Background(), c.port)
		if p.Marker != c.marker || p.Value != c.value {
			t.Errorf("%s: want %s/%.2f, got %s/%.2f", c.port, c.marker, c.value, p.Marker, p.Value)
		}
		if p.Live {
			t.Errorf("%s: no provider, price must not be live", c.port)
		}
	}
}

func TestResolverUnknownMarkerDefaultPrice(t *testing.T) {
	table := DefaultTable()
	table.PortMarkers["Gibraltar"] = "MED"
	r := NewResolver(table, nil)
	p := r.PriceFor(context.Background(), "Gibraltar")
	if p.Value != 12.00 {
		t.Fatalf("unknown marker should use the default price, got %.2f", p.Value)
	}
}

func TestResolverLiveQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			http.NotFound(w, r)
			return
		}
		sym := r.URL.Query().Get("symbol")
		fmt.Fprintf(w, `{"symbol":%q,"price":"14.567"}`, sym)
	}))
	defer srv.Close()

	r := NewResolver(DefaultTable(), NewHTTPProvider(srv.URL, time.Second, 0))
	p := r.PriceFor(context.Background(), "Yokohama")
	if !p.Live {
		t.Fatalf("want live price, got %+v", p)
	}
	if p.Value != 14.57 {
		t.Fatalf("live price should round to cents: want 14.57, got %v", p.Value)
	}
}

func TestResolverFallbackOnFeedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := NewResolver(DefaultTable(), NewHTTPProvider(srv.URL, time.Second, 0))
	p := r.PriceFor(context.Background(), "Rotterdam")
	if p.Live {
		t.Fatalf("feed error should degrade to the table")
	}
	if p.Marker != "TTF" || p.Value != 11.75 {
		t.Fatalf("want TTF/11.75, got %s/%.2f", p.Marker, p.Value)
	}
}

func TestResolverFallbackOnBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"JKM=F"}`)
	}))
	defer srv.Close()

	r := NewResolver(DefaultTable(), NewHTTPProvider(srv.URL, time.Second, 0))
	p := r.PriceFor(context.Background(), "Yokohama")
	if p.Live || p.Value != 13.25 {
		t.Fatalf("missing price field should fall back, got %+v", p)
	}
}

func TestSessionCachesPerMarker(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, `{"symbol":"JKM=F","price":"13.50"}`)
	}))
	defer srv.Close()

	sess := NewResolver(DefaultTable(), NewHTTPProvider(srv.URL, time.Second, 0)).Session()
	// Yokohama and Busan share the JKM marker.
	a := sess.PriceFor(context.Background(), "Yokohama")
	b := sess.PriceFor(context.Background(), "Busan")
	if a != b {
		t.Fatalf("same marker must price identically within a session: %+v vs %+v", a, b)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("want a single upstream call, got %d", got)
	}
}

func TestHTTPProviderRateShedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"JKM=F","price":"13.50"}`)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, 1) // 1 rps, burst 1
	if _, err := p.Quote(context.Background(), "JKM=F"); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if _, err := p.Quote(context.Background(), "JKM=F"); err == nil {
		t.Fatalf("second immediate call should be shed")
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{"JKM=F": 13.10}
	q, err := p.Quote(context.Background(), "JKM=F")
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := q.Float64(); f != 13.10 {
		t.Fatalf("want 13.10, got %v", f)
	}
	if _, err := p.Quote(context.Background(), "TTF=F"); err == nil {
		t.Fatalf("unknown instrument should error")
	}
}
