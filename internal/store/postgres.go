package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"lngsched/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir executes every .sql file in dir in lexical order. Statements are
// expected to be idempotent (CREATE TABLE IF NOT EXISTS etc.).
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) ReplaceVessels(ctx context.Context, vessels []model.Vessel) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return 0, err }
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM vessels`); err != nil { return 0, err }
	for _, v := range vessels {
		_, err = tx.ExecContext(ctx, `INSERT INTO vessels (vessel_id, speed, cost_per_day, current_location, status, delay_hours, last_update)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			v.VesselID, v.Speed, v.CostPerDay, nullIfEmpty(v.CurrentLocation), nullIfEmpty(v.Status), v.DelayHours, nullIfEmpty(v.LastUpdate))
		if err != nil { return 0, err }
	}
	if err := tx.Commit(); err != nil { return 0, err }
	return len(vessels), nil
}

func (p *Postgres) ListVessels(ctx context.Context) ([]model.Vessel, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT vessel_id, speed, cost_per_day, COALESCE(current_location,''), COALESCE(status,''), delay_hours, COALESCE(last_update,'') FROM vessels ORDER BY vessel_id`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Vessel{}
	for rows.Next() {
		var v model.Vessel
		if err := rows.Scan(&v.VesselID, &v.Speed, &v.CostPerDay, &v.CurrentLocation, &v.Status, &v.DelayHours, &v.LastUpdate); err != nil { return nil, err }
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) ReplaceCargos(ctx context.Context, cargos []model.Cargo) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return 0, err }
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM cargos`); err != nil { return 0, err }
	for _, c := range cargos {
		_, err = tx.ExecContext(ctx, `INSERT INTO cargos (cargo_id, origin, destination, window_start, window_end, volume)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			c.CargoID, c.Origin, c.Destination, nullIfEmpty(c.WindowStart), c.WindowEnd, c.Volume)
		if err != nil { return 0, err }
	}
	if err := tx.Commit(); err != nil { return 0, err }
	return len(cargos), nil
}

func (p *Postgres) ListCargos(ctx context.Context) ([]model.Cargo, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT cargo_id, origin, destination, COALESCE(window_start,''), window_end, volume FROM cargos ORDER BY cargo_id`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Cargo{}
	for rows.Next() {
		var c model.Cargo
		if err := rows.Scan(&c.CargoID, &c.Origin, &c.Destination, &c.WindowStart, &c.WindowEnd, &c.Volume); err != nil { return nil, err }
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) ReplaceContracts(ctx context.Context, contracts []model.Contract) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return 0, err }
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM contracts`); err != nil { return 0, err }
	for _, c := range contracts {
		_, err = tx.ExecContext(ctx, `INSERT INTO contracts (cargo_id, delivery_price_per_ton, penalty_per_day) VALUES ($1,$2,$3)`,
			c.CargoID, c.DeliveryPricePerTon, c.PenaltyPerDay)
		if err != nil { return 0, err }
	}
	if err := tx.Commit(); err != nil { return 0, err }
	return len(contracts), nil
}

func (p *Postgres) ListContracts(ctx context.Context) ([]model.Contract, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT cargo_id, delivery_price_per_ton, penalty_per_day FROM contracts ORDER BY cargo_id`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Contract{}
	for rows.Next() {
		var c model.Contract
		if err := rows.Scan(&c.CargoID, &c.DeliveryPricePerTon, &c.PenaltyPerDay); err != nil { return nil, err }
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) SaveRun(ctx context.Context, run model.OptimizationRun) error {
	payload, err := json.Marshal(run)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, requested_at, assignments, banners, payload)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET payload=EXCLUDED.payload, assignments=EXCLUDED.assignments, banners=EXCLUDED.banners`,
		run.ID, run.RequestedAt, len(run.Schedule), len(run.Banners), payload)
	return err
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.OptimizationRun, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM runs WHERE id=$1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) { return model.OptimizationRun{}, ErrNotFound }
	if err != nil { return model.OptimizationRun{}, err }
	var run model.OptimizationRun
	if err := json.Unmarshal(payload, &run); err != nil { return model.OptimizationRun{}, err }
	return run, nil
}

func (p *Postgres) LatestRun(ctx context.Context) (model.OptimizationRun, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM runs ORDER BY created_at DESC LIMIT 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) { return model.OptimizationRun{}, ErrNotFound }
	if err != nil { return model.OptimizationRun{}, err }
	var run model.OptimizationRun
	if err := json.Unmarshal(payload, &run); err != nil { return model.OptimizationRun{}, err }
	return run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, requested_at, assignments, banners FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.RunSummary{}
	for rows.Next() {
		var s model.RunSummary
		if err := rows.Scan(&s.ID, &s.RequestedAt, &s.Assignments, &s.Banners); err != nil { return nil, err }
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		id, req.URL, strings.Join(req.Events, ","), nullIfEmpty(req.Secret))
	if err != nil { return model.Subscription{}, err }
	return model.Subscription{ID: id, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, COALESCE(secret,'') FROM subscriptions`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil { return nil, err }
		s.Events = strings.Split(events, ",")
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events FROM subscriptions ORDER BY id`)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events string
		if err := rows.Scan(&s.ID, &s.URL, &events); err != nil { return nil, err }
		s.Events = strings.Split(events, ",")
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
		VALUES ($1,$2,$3,$4,$5,$6,'pending',0,now())`, id, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil { return "", err }
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
		FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`,
		id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries`
	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = p.db.QueryContext(ctx, q+` WHERE status=$1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, q+` ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil { return nil, err }
	defer rows.Close()
	out := []map[string]any{}
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, err }
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
		if lastErr != "" { m["lastError"] = lastErr }
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE id=$1`, id)
	if err != nil { return err }
	if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
