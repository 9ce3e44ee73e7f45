// Package httpapi exposes the run's operational surface: liveness, Prometheus
// metrics, and a JSON progress snapshot. It carries no record data, so the
// listener can be scraped without PHI exposure.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redmig/internal/domain"
)

// Tracker accumulates run progress for the /progress endpoint. It implements
// the orchestrator's observer callbacks and is safe for concurrent use.
type Tracker struct {
	startedAt time.Time
	total     int64

	confirmed   atomic.Int64
	failed      atomic.Int64
	skipped     atomic.Int64
	batches     atomic.Int64
	cursorIndex atomic.Int64
}

// NewTracker starts tracking a run over total records.
func NewTracker(total int) *Tracker {
	t := &Tracker{startedAt: time.Now(), total: int64(total)}
	t.cursorIndex.Store(-1)
	return t
}

func (t *Tracker) RecordDone(out domain.Outcome) {
	switch out.Status {
	case domain.StatusConfirmed:
		t.confirmed.Add(1)
	case domain.StatusFailed:
		t.failed.Add(1)
	case domain.StatusSkipped:
		t.skipped.Add(1)
	}
}

func (t *Tracker) BatchDone(_, cursorIndex int) {
	t.batches.Add(1)
	t.cursorIndex.Store(int64(cursorIndex))
}

type progressSnapshot struct {
	StartedAt   time.Time `json:"started_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Total       int64     `json:"total_records"`
	Confirmed   int64     `json:"confirmed"`
	Failed      int64     `json:"failed"`
	Skipped     int64     `json:"skipped"`
	Batches     int64     `json:"batches_committed"`
	CursorIndex int64     `json:"cursor_index"`
	Done        int64     `json:"done"`
	PercentDone float64   `json:"percent_done"`
}

func (t *Tracker) snapshot() progressSnapshot {
	s := progressSnapshot{
		StartedAt:   t.startedAt,
		ElapsedMS:   time.Since(t.startedAt).Milliseconds(),
		Total:       t.total,
		Confirmed:   t.confirmed.Load(),
		Failed:      t.failed.Load(),
		Skipped:     t.skipped.Load(),
		Batches:     t.batches.Load(),
		CursorIndex: t.cursorIndex.Load(),
	}
	s.Done = s.Confirmed + s.Failed + s.Skipped
	if s.Total > 0 {
		s.PercentDone = float64(s.Done) / float64(s.Total) * 100
	}
	return s
}

// NewRouter wires the operational endpoints. reg may be the default
// registerer's gatherer; tracker may be nil when no run is active.
func NewRouter(tracker *Tracker, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/progress", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if tracker == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(tracker.snapshot())
	})
	return r
}
