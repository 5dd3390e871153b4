package api

import (
	"os"
	"strings"
	"time"

	"lngsched/internal/config"
	"lngsched/internal/opt"
	"lngsched/internal/pricefeed"
	"lngsched/internal/store"
	"lngsched/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Pub      *webhooks.Publisher
	Broker   EventBroker
	Resolver *pricefeed.Resolver
	Distance float64
	Alerts   opt.AlertRules
}

// NewServer wires the server from configuration. Without DATABASE_URL the
// in-memory store is used; without REDIS_URL events stay process-local.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		// Run migrations (dev helper)
		if os.Getenv("DB_MIGRATE") != "false" {
			_ = sp.MigrateDir("db/migrations")
		}
		s = sp
	}

	var broker EventBroker
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	var provider pricefeed.QuoteProvider
	if cfg.PriceFeed.BaseURL != "" {
		provider = pricefeed.NewHTTPProvider(cfg.PriceFeed.BaseURL, time.Duration(cfg.PriceFeed.TimeoutMs)*time.Millisecond, cfg.PriceFeed.RatePerSec)
	}
	resolver := pricefeed.NewResolver(tableFromConfig(cfg.Markets), provider)

	alerts := opt.DefaultAlertRules()
	if cfg.Optimizer.OpportunityThreshold > 0 {
		alerts.OpportunityThreshold = cfg.Optimizer.OpportunityThreshold
	}
	if cfg.Optimizer.WarningPort != "" {
		alerts.WarningPort = cfg.Optimizer.WarningPort
	}
	if cfg.Optimizer.WarningDays > 0 {
		alerts.WarningDays = cfg.Optimizer.WarningDays
	}

	return &Server{
		Store:    s,
		Pub:      webhooks.NewPublisher(s),
		Broker:   broker,
		Resolver: resolver,
		Distance: cfg.Optimizer.ReferenceDistance,
		Alerts:   alerts,
	}, nil
}

// tableFromConfig overlays configured market maps onto the built-in table.
func tableFromConfig(m config.Markets) pricefeed.Table {
	t := pricefeed.DefaultTable()
	for k, v := range m.PortMarkers {
		t.PortMarkers[k] = v
	}
	for k, v := range m.Instruments {
		t.Instruments[k] = v
	}
	for k, v := range m.FallbackPrices {
		t.Fallback[k] = v
	}
	if m.DefaultMarker != "" {
		t.DefaultMarker = m.DefaultMarker
	}
	if m.DefaultPrice > 0 {
		t.DefaultPrice = m.DefaultPrice
	}
	return t
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}
