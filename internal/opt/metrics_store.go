package opt

import "sync"

var (
	mu    sync.Mutex
	runs  = map[string]RunMetrics{}
	order []string
)

const maxRetained = 200

// RecordRunMetrics retains solver metrics for the admin view. Oldest entries
// are evicted beyond the retention cap.
func RecordRunMetrics(runID string, m RunMetrics) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := runs[runID]; !ok {
		order = append(order, runID)
		if len(order) > maxRetained {
			delete(runs, order[0])
			order = order[1:]
		}
	}
	runs[runID] = m
}

// GetRunMetrics returns the metrics recorded for a run, if any.
func GetRunMetrics(runID string) (RunMetrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := runs[runID]
	return m, ok
}

// ListRunMetrics returns a copy of all retained run metrics keyed by run id.
func ListRunMetrics() map[string]RunMetrics {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]RunMetrics, len(runs))
	for k, v := range runs {
		out[k] = v
	}
	return out
}
