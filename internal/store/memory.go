package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lngsched/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	vessels     []model.Vessel
	cargos      []model.Cargo
	contracts   []model.Contract
	runs        map[string]model.OptimizationRun
	runOrder    []string // insertion order, oldest first
	subs        []model.Subscription
	deliveries  map[string]*memDelivery
	deliverySeq []string
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.OptimizationRun{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) ReplaceVessels(ctx context.Context, vessels []model.Vessel) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vessels = append([]model.Vessel(nil), vessels...)
	return len(m.vessels), nil
}

func (m *Memory) ListVessels(ctx context.Context) ([]model.Vessel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Vessel{}, m.vessels...), nil
}

func (m *Memory) ReplaceCargos(ctx context.Context, cargos []model.Cargo) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cargos = append([]model.Cargo(nil), cargos...)
	return len(m.cargos), nil
}

func (m *Memory) ListCargos(ctx context.Context) ([]model.Cargo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Cargo{}, m.cargos...), nil
}

func (m *Memory) ReplaceContracts(ctx context.Context, contracts []model.Contract) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = append([]model.Contract(nil), contracts...)
	return len(m.contracts), nil
}

func (m *Memory) ListContracts(ctx context.Context) ([]model.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Contract{}, m.contracts...), nil
}

func (m *Memory) SaveRun(ctx context.Context, run model.OptimizationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.runOrder = append(m.runOrder, run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.OptimizationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.OptimizationRun{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) LatestRun(ctx context.Context) (model.OptimizationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runOrder) == 0 {
		return model.OptimizationRun{}, ErrNotFound
	}
	return m.runs[m.runOrder[len(m.runOrder)-1]], nil
}

func (m *Memory) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.RunSummary{}
	// newest first
	for i := len(m.runOrder) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.runs[m.runOrder[i]]
		out = append(out, model.RunSummary{ID: r.ID, RequestedAt: r.RequestedAt, Assignments: len(r.Schedule), Banners: len(r.Banners)})
	}
	return out, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Subscription{}, m.subs...), nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	m.deliveries[id] = d
	m.deliverySeq = append(m.deliverySeq, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.deliverySeq {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []map[string]any{}
	for _, id := range m.deliverySeq {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status != "" && d.Status != status {
			continue
		}
		item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
		if !d.NextAttemptAt.IsZero() {
			item["nextAttemptAt"] = d.NextAttemptAt
		}
		if d.LastError != "" {
			item["lastError"] = d.LastError
		}
		out = append(out, item)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Status = "pending"
	d.NextAttemptAt = time.Now()
	return nil
}
