package store

import (
	"context"
	"errors"
	"time"

	"lngsched/internal/model"
)

// Store is the persistence interface used by the API server. Fleet data is
// replaced wholesale per upload; optimization runs are append-only.
type Store interface {
	// Fleet data
	ReplaceVessels(ctx context.Context, vessels []model.Vessel) (int, error)
	ListVessels(ctx context.Context) ([]model.Vessel, error)
	ReplaceCargos(ctx context.Context, cargos []model.Cargo) (int, error)
	ListCargos(ctx context.Context) ([]model.Cargo, error)
	ReplaceContracts(ctx context.Context, contracts []model.Contract) (int, error)
	ListContracts(ctx context.Context) ([]model.Contract, error)

	// Optimization runs
	SaveRun(ctx context.Context, run model.OptimizationRun) error
	GetRun(ctx context.Context, id string) (model.OptimizationRun, error)
	LatestRun(ctx context.Context) (model.OptimizationRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error)
	RetryWebhookDelivery(ctx context.Context, id string) error
}

// WebhookDelivery is one queued outbound delivery attempt.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

var ErrNotFound = errors.New("not found")
