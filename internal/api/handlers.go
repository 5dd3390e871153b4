package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lngsched/internal/ingest"
	"lngsched/internal/metrics"
	"lngsched/internal/model"
	"lngsched/internal/opt"
)

// UploadHandler handles POST /v1/uploads/{kind} where kind is one of
// vessels, cargos, contracts. Accepts raw CSV or a multipart "file" part.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	kind := strings.TrimPrefix(r.URL.Path, "/v1/uploads/")
	body, err := uploadBody(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid upload", err.Error(), r.URL.Path)
		return
	}
	defer body.Close()

	var imported, dropped int
	switch kind {
	case "vessels":
		vessels, d, err := ingest.DecodeVessels(body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
			return
		}
		dropped = d
		if imported, err = s.Store.ReplaceVessels(r.Context(), vessels); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Store vessels failed", err.Error(), r.URL.Path)
			return
		}
	case "cargos":
		cargos, d, err := ingest.DecodeCargos(body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
			return
		}
		dropped = d
		if imported, err = s.Store.ReplaceCargos(r.Context(), cargos); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Store cargos failed", err.Error(), r.URL.Path)
			return
		}
	case "contracts":
		contracts, d, err := ingest.DecodeContracts(body)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
			return
		}
		dropped = d
		if imported, err = s.Store.ReplaceContracts(r.Context(), contracts); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Store contracts failed", err.Error(), r.URL.Path)
			return
		}
	default:
		writeProblem(w, http.StatusNotFound, "Unknown upload kind", kind, r.URL.Path)
		return
	}
	s.Pub.Emit(r.Context(), "fleet.updated", map[string]any{"kind": kind, "imported": imported, "dropped": dropped})
	writeJSON(w, http.StatusAccepted, map[string]any{"kind": kind, "imported": imported, "dropped": dropped})
}

// uploadBody returns the CSV stream from either a multipart form or the raw body.
func uploadBody(r *http.Request) (io.ReadCloser, error) {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return r.Body, nil
}

// VesselsHandler handles GET /v1/vessels; ?format=csv exports the stored set.
func (s *Server) VesselsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	vessels, err := s.Store.ListVessels(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List vessels failed", err.Error(), r.URL.Path)
		return
	}
	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="vessels.csv"`)
		if err := ingest.EncodeVessels(w, vessels); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Export failed", err.Error(), r.URL.Path)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": vessels})
}

func (s *Server) CargosHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cargos, err := s.Store.ListCargos(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List cargos failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cargos})
}

func (s *Server) ContractsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	contracts, err := s.Store.ListContracts(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List contracts failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": contracts})
}

// OptimizeHandler handles POST /v1/optimize. Fleet data may be supplied
// inline; any side left empty uses the stored set.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}
	vessels := req.Vessels
	if len(vessels) == 0 {
		var err error
		if vessels, err = s.Store.ListVessels(r.Context()); err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vessels failed", err.Error(), r.URL.Path)
			return
		}
	}
	cargos := req.Cargos
	if len(cargos) == 0 {
		var err error
		if cargos, err = s.Store.ListCargos(r.Context()); err != nil {
			writeProblem(w, http.StatusInternalServerError, "List cargos failed", err.Error(), r.URL.Path)
			return
		}
	}

	start := time.Now()
	res := opt.Solve(r.Context(), opt.Problem{
		Vessels:  vessels,
		Cargos:   cargos,
		Prices:   s.Resolver.Session(),
		Distance: s.Distance,
		Alerts:   s.Alerts,
	})
	metrics.OptimizeDuration.Observe(time.Since(start).Seconds())
	outcome := "scheduled"
	if len(res.Schedule) == 0 {
		outcome = "empty"
	}
	metrics.OptimizeRuns.WithLabelValues(outcome).Inc()

	run := model.OptimizationRun{
		ID:          uuid.New().String(),
		RequestedAt: start.UTC().Format(time.RFC3339),
		Schedule:    res.Schedule,
		Vessels:     res.Vessels,
		Banners:     res.Banners,
		Diagnostics: res.Diagnostics,
	}
	if err := s.Store.SaveRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save run failed", err.Error(), r.URL.Path)
		return
	}
	opt.RecordRunMetrics(run.ID, res.Metrics)

	s.Pub.Emit(r.Context(), "schedule.optimized", map[string]any{
		"runId":       run.ID,
		"assignments": len(run.Schedule),
		"banners":     len(run.Banners),
	})
	s.Broker.Publish(run.ID, SSEEvent{Type: "schedule.optimized", Data: map[string]any{
		"runId":       run.ID,
		"assignments": len(run.Schedule),
	}})
	for _, b := range run.Banners {
		s.Pub.Emit(r.Context(), "alert.banner", map[string]any{"runId": run.ID, "type": b.Type, "message": b.Message})
		s.Broker.Publish(run.ID, SSEEvent{Type: "alert.banner", Data: map[string]any{"runId": run.ID, "type": b.Type, "message": b.Message}})
	}

	writeJSON(w, http.StatusOK, run)
}

// RunsHandler handles GET /v1/runs.
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// RunByIDHandler handles /v1/runs/latest, /v1/runs/{id} and
// /v1/runs/{id}/events/stream.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.streamRunEvents(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var (
		run model.OptimizationRun
		err error
	)
	if id == "latest" {
		run, err = s.Store.LatestRun(r.Context())
	} else {
		run, err = s.Store.GetRun(r.Context(), id)
	}
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) streamRunEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// ScheduleHandler returns the schedule from the latest run.
func (s *Server) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run, err := s.Store.LatestRun(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []model.ScheduleRecord{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "items": run.Schedule})
}

// BannersHandler returns the advisory banners from the latest run.
func (s *Server) BannersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	run, err := s.Store.LatestRun(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []model.Banner{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runId": run.ID, "items": run.Banners})
}

func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		items, err := s.Store.ListSubscriptions(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListWebhookDeliveries(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), id); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
}

// Admin: per-run solver metrics
func (s *Server) RunMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if id := r.URL.Query().Get("runId"); id != "" {
		m, ok := opt.GetRunMetrics(id)
		if !ok {
			writeProblem(w, http.StatusNotFound, "Run metrics not found", id, r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, m)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": opt.ListRunMetrics()})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
