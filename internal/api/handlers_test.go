package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lngsched/internal/config"
	"lngsched/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.Default())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

const vesselsCSV = `vessel_id,speed,cost_per_day
V1,20,5000
V2,10,3000
`

const cargosCSV = `cargo_id,origin,destination,window_end,volume
C1,Ras Laffan,Yokohama,2026-06-01 00:00,50000
C2,Bintulu,Rotterdam,2026-10-27 00:00,30000
`

func uploadCSV(t *testing.T, s *Server, kind, body string) map[string]any {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads/"+kind, strings.NewReader(body))
	req.Header.Set("Content-Type", "text/csv")
	s.UploadHandler(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("upload %s: got %d: %s", kind, rr.Code, rr.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestUploadAndList(t *testing.T) {
	s := newTestServer(t)
	out := uploadCSV(t, s, "vessels", vesselsCSV)
	if out["imported"].(float64) != 2 {
		t.Fatalf("imported: %+v", out)
	}
	uploadCSV(t, s, "cargos", cargosCSV)

	rr := httptest.NewRecorder()
	s.VesselsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/vessels", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "V1") {
		t.Fatalf("vessels list: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	s.CargosHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/cargos", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "C2") {
		t.Fatalf("cargos list: %d", rr.Code)
	}
}

func TestUploadUnknownKind(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/uploads/crews", strings.NewReader("a,b\n1,2\n"))
	s.UploadHandler(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown kind: got %d", rr.Code)
	}
}

func TestUploadCountsDropped(t *testing.T) {
	s := newTestServer(t)
	out := uploadCSV(t, s, "vessels", "vessel_id,speed,cost_per_day\nV1,20,5000\nV2,bad,3000\n")
	if out["imported"].(float64) != 1 || out["dropped"].(float64) != 1 {
		t.Fatalf("counts: %+v", out)
	}
}

func TestOptimizeFromStoredFleet(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, "vessels", vesselsCSV)
	uploadCSV(t, s, "cargos", cargosCSV)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	s.OptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize: %d %s", rr.Code, rr.Body.String())
	}
	var run model.OptimizationRun
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" || len(run.Schedule) != 2 {
		t.Fatalf("run: %+v", run)
	}
	// No live feed configured, so both destinations price from the table.
	if run.Schedule[0].Vessel != "V1" || run.Schedule[0].Cargo != "C1" {
		t.Fatalf("first assignment: %+v", run.Schedule[0])
	}
	if run.Schedule[0].EstimatedRevenue != 662500 {
		t.Fatalf("revenue: %v", run.Schedule[0].EstimatedRevenue)
	}

	// Schedule and banners endpoints serve the latest run.
	rr = httptest.NewRecorder()
	s.ScheduleHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/schedule", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), run.ID) {
		t.Fatalf("schedule: %d %s", rr.Code, rr.Body.String())
	}
	rr = httptest.NewRecorder()
	s.BannersHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/banners", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "Yokohama") {
		t.Fatalf("banners should report the JKM surge at Yokohama: %s", rr.Body.String())
	}

	// Runs endpoints.
	rr = httptest.NewRecorder()
	s.RunsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), run.ID) {
		t.Fatalf("runs list: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/latest", nil))
	if rr.Code != 200 {
		t.Fatalf("runs latest: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("run by id: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown run: %d", rr.Code)
	}

	// Admin run metrics.
	rr = httptest.NewRecorder()
	s.RunMetricsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/run-metrics?runId="+run.ID, nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), "totalProfit") {
		t.Fatalf("run metrics: %d %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizeInlineFleet(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{
		"vessels": [{"vessel_id": "V1", "speed": 20, "cost_per_day": 5000}],
		"cargos": [{"cargo_id": "C1", "origin": "X", "destination": "Busan", "window_end": "2026-06-01", "volume": 10000}]
	}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	s.OptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize inline: %d %s", rr.Code, rr.Body.String())
	}
	var run model.OptimizationRun
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if len(run.Schedule) != 1 || run.Schedule[0].DeliveryPort != "Busan" {
		t.Fatalf("run: %+v", run)
	}
}

func TestOptimizeRejectsDuplicates(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"vessels": [
		{"vessel_id": "V1", "speed": 20, "cost_per_day": 5000},
		{"vessel_id": "V1", "speed": 10, "cost_per_day": 3000}
	]}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(body))
	s.OptimizeHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("duplicate vessel ids: got %d", rr.Code)
	}
}

func TestOptimizeEmptyFleet(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(`{}`)))
	s.OptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize with no data should still succeed: %d", rr.Code)
	}
	var run model.OptimizationRun
	_ = json.Unmarshal(rr.Body.Bytes(), &run)
	if len(run.Schedule) != 0 || run.Diagnostics.Reason == "" {
		t.Fatalf("empty run should carry a reason: %+v", run)
	}
}

func TestVesselsCSVExport(t *testing.T) {
	s := newTestServer(t)
	uploadCSV(t, s, "vessels", vesselsCSV)
	rr := httptest.NewRecorder()
	s.VesselsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/vessels?format=csv", nil))
	if rr.Code != 200 {
		t.Fatalf("export: %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type: %s", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "vessel_id,speed,cost_per_day") {
		t.Fatalf("missing header: %s", rr.Body.String())
	}
}

func TestSubscriptionsCRUD(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"url":"http://example.test/hook","events":["schedule.optimized"],"secret":"s"}`)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d %s", rr.Code, rr.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(rr.Body.Bytes(), &sub)

	rr = httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), sub.ID) {
		t.Fatalf("list subscriptions: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete subscription: %d", rr.Code)
	}
}

func TestSubscriptionsRequireURLAndEvents(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader([]byte(`{"url":""}`)))
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rr.Code)
	}
}

func TestOptimizeEnqueuesWebhooks(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"url":"http://example.test/hook","events":["schedule.optimized"]}`)
	rr := httptest.NewRecorder()
	s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d", rr.Code)
	}

	uploadCSV(t, s, "vessels", vesselsCSV)
	uploadCSV(t, s, "cargos", cargosCSV)
	rr = httptest.NewRecorder()
	s.OptimizeHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader([]byte(`{}`))))
	if rr.Code != 200 {
		t.Fatalf("optimize: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.WebhookDeliveriesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?status=pending", nil))
	if rr.Code != 200 {
		t.Fatalf("deliveries: %d", rr.Code)
	}
	var out struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out.Items) != 1 {
		t.Fatalf("want 1 pending delivery, got %+v", out.Items)
	}
	if out.Items[0]["eventType"] != "schedule.optimized" {
		t.Fatalf("delivery: %+v", out.Items[0])
	}
}

func TestRunEventsSSE(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(http.HandlerFunc(s.RunByIDHandler))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/runs/r1/events/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "event: heartbeat") {
		t.Fatalf("first line: %q err=%v", line, err)
	}
	// heartbeat data line + blank line
	_, _ = reader.ReadString('\n')
	_, _ = reader.ReadString('\n')

	// The subscription exists once the heartbeat is out.
	s.Broker.Publish("r1", SSEEvent{Type: "schedule.optimized", Data: map[string]any{"runId": "r1"}})

	deadline := time.After(2 * time.Second)
	got := make(chan string, 1)
	go func() {
		l, _ := reader.ReadString('\n')
		got <- l
	}()
	select {
	case l := <-got:
		if !strings.HasPrefix(l, "event: schedule.optimized") {
			t.Fatalf("event line: %q", l)
		}
	case <-deadline:
		t.Fatal("timeout waiting for published event")
	}
}
