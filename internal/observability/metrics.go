// Package observability exposes run counters over the Prometheus text
// format. Counters only; timing belongs in logs.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// Metrics holds the harvest counters. All methods are safe for concurrent
// use; a nil *Metrics is a no-op so callers never have to branch.
type Metrics struct {
	pagesFetched      atomic.Int64
	fetchFailures     atomic.Int64
	candidatesFound   atomic.Int64
	structuredDrafts  atomic.Int64
	eventsEmitted     atomic.Int64
	duplicatesSkipped atomic.Int64

	mu      sync.Mutex
	rejects map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{rejects: make(map[string]int64)}
}

func (m *Metrics) PageFetched() {
	if m != nil {
		m.pagesFetched.Add(1)
	}
}

func (m *Metrics) FetchFailed() {
	if m != nil {
		m.fetchFailures.Add(1)
	}
}

func (m *Metrics) CandidatesFound(n int) {
	if m != nil {
		m.candidatesFound.Add(int64(n))
	}
}

func (m *Metrics) StructuredDrafts(n int) {
	if m != nil {
		m.structuredDrafts.Add(int64(n))
	}
}

func (m *Metrics) EventEmitted() {
	if m != nil {
		m.eventsEmitted.Add(1)
	}
}

func (m *Metrics) DuplicateSkipped() {
	if m != nil {
		m.duplicatesSkipped.Add(1)
	}
}

// CandidateRejected counts a rejection under its reason label.
func (m *Metrics) CandidateRejected(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.rejects[reason]++
	m.mu.Unlock()
}

func (m *Metrics) EventsEmitted() int64 {
	if m == nil {
		return 0
	}
	return m.eventsEmitted.Load()
}

// ServeHTTP writes the counters in Prometheus exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeCounter(w, "cityhound_pages_fetched_total", "Pages fetched.", m.pagesFetched.Load())
	writeCounter(w, "cityhound_fetch_failures_total", "Pages that failed to fetch after retries.", m.fetchFailures.Load())
	writeCounter(w, "cityhound_candidates_total", "Candidate blocks located.", m.candidatesFound.Load())
	writeCounter(w, "cityhound_structured_drafts_total", "Drafts taken from JSON-LD.", m.structuredDrafts.Load())
	writeCounter(w, "cityhound_events_emitted_total", "Events emitted after normalization.", m.eventsEmitted.Load())
	writeCounter(w, "cityhound_duplicates_skipped_total", "Drafts dropped by per-run dedup.", m.duplicatesSkipped.Load())

	m.mu.Lock()
	reasons := make([]string, 0, len(m.rejects))
	for reason := range m.rejects {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	fmt.Fprintf(w, "# HELP cityhound_candidates_rejected_total Candidates rejected, by reason.\n")
	fmt.Fprintf(w, "# TYPE cityhound_candidates_rejected_total counter\n")
	for _, reason := range reasons {
		fmt.Fprintf(w, "cityhound_candidates_rejected_total{reason=%q} %d\n", reason, m.rejects[reason])
	}
	m.mu.Unlock()
}

func writeCounter(w http.ResponseWriter, name, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// Serve exposes the metrics endpoint in the background. Callers shut it down
// by closing the returned server.
func Serve(m *Metrics, port int, path string, logger *slog.Logger) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
