// Package metrics keeps process-wide counters for the link checker and serves them in the
// Prometheus text format.
package metrics

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"linkchecker/internal/models"
)

var (
	// Probe outcomes: http = a final HTTP response was obtained; the rest are the synthetic failure kinds.
	probesHTTP             uint64
	probesTimeout          uint64
	probesTooManyRedirects uint64
	probesCannotConnect    uint64
	probesInvalidURL       uint64
	probesUnknown          uint64

	urlsSkipped       uint64 // non-http(s) candidates
	batchesCommitted  uint64
	batchesFailed     uint64 // write or commit failures; the run aborts after one
	publishFailures   uint64 // status feed write errors after commit
	probesInFlight    int64  // gauge
	statusesPublished uint64

	probeLatency  = newHistogram([]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60})
	commitLatency = newHistogram([]float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1})
)

// histogram is a fixed-bucket latency histogram; counts has one extra slot for +Inf.
type histogram struct {
	buckets []float64
	counts  []uint64
	sumNs   uint64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{buckets: buckets, counts: make([]uint64, len(buckets)+1)}
}

func (h *histogram) observe(duration time.Duration) {
	if duration <= 0 {
		return
	}
	seconds := duration.Seconds()
	bucketIndex := len(h.buckets)
	for i, bound := range h.buckets {
		if seconds <= bound {
			bucketIndex = i
			break
		}
	}
	atomic.AddUint64(&h.counts[bucketIndex], 1)
	atomic.AddUint64(&h.sumNs, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&h.count, 1)
}

// ProbeStarted marks one probe in flight.
func ProbeStarted() {
	atomic.AddInt64(&probesInFlight, 1)
}

// ProbeFinished records the outcome and latency of a probe started with ProbeStarted.
func ProbeFinished(duration time.Duration, status models.StatusCode) {
	atomic.AddInt64(&probesInFlight, -1)
	probeLatency.observe(duration)
	switch {
	case status.IsHTTP():
		atomic.AddUint64(&probesHTTP, 1)
	case status == models.StatusTimeout:
		atomic.AddUint64(&probesTimeout, 1)
	case status == models.StatusTooManyRedirects:
		atomic.AddUint64(&probesTooManyRedirects, 1)
	case status == models.StatusCannotConnect:
		atomic.AddUint64(&probesCannotConnect, 1)
	case status == models.StatusInvalidURL:
		atomic.AddUint64(&probesInvalidURL, 1)
	case status == models.StatusUnknownError:
		atomic.AddUint64(&probesUnknown, 1)
	}
}

// ProbeAbandoned ends a probe started with ProbeStarted that produced no outcome.
func ProbeAbandoned() {
	atomic.AddInt64(&probesInFlight, -1)
}

func URLSkipped() {
	atomic.AddUint64(&urlsSkipped, 1)
}

func BatchCommitted(duration time.Duration) {
	atomic.AddUint64(&batchesCommitted, 1)
	commitLatency.observe(duration)
}

func BatchFailed() {
	atomic.AddUint64(&batchesFailed, 1)
}

func StatusesPublished(n int) {
	atomic.AddUint64(&statusesPublished, uint64(n))
}

func PublishFailed() {
	atomic.AddUint64(&publishFailures, 1)
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", Handler)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown error: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

// Handler writes every counter in the Prometheus text format.
func Handler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	var sb strings.Builder
	sb.WriteString("linkchecker_up 1\n")
	sb.WriteString("# HELP linkchecker_probes_total Probes by outcome kind.\n")
	sb.WriteString("# TYPE linkchecker_probes_total counter\n")
	for _, kv := range []struct {
		kind  string
		value *uint64
	}{
		{"http", &probesHTTP},
		{models.StatusTimeout.String(), &probesTimeout},
		{models.StatusTooManyRedirects.String(), &probesTooManyRedirects},
		{models.StatusCannotConnect.String(), &probesCannotConnect},
		{models.StatusInvalidURL.String(), &probesInvalidURL},
		{models.StatusUnknownError.String(), &probesUnknown},
	} {
		sb.WriteString(fmt.Sprintf("linkchecker_probes_total{kind=%q} %d\n", kv.kind, atomic.LoadUint64(kv.value)))
	}
	sb.WriteString(fmt.Sprintf(
		"linkchecker_urls_skipped_total %d\n"+
			"linkchecker_batches_committed_total %d\n"+
			"linkchecker_batches_failed_total %d\n"+
			"linkchecker_statuses_published_total %d\n"+
			"linkchecker_publish_failures_total %d\n"+
			"linkchecker_probes_in_flight %d\n",
		atomic.LoadUint64(&urlsSkipped),
		atomic.LoadUint64(&batchesCommitted),
		atomic.LoadUint64(&batchesFailed),
		atomic.LoadUint64(&statusesPublished),
		atomic.LoadUint64(&publishFailures),
		atomic.LoadInt64(&probesInFlight),
	))

	sb.WriteString("# HELP linkchecker_probe_latency_seconds Link probe latency.\n")
	sb.WriteString("# TYPE linkchecker_probe_latency_seconds histogram\n")
	appendHistogram(&sb, "linkchecker_probe_latency_seconds", probeLatency, "%.2f")
	sb.WriteString("# HELP linkchecker_commit_latency_seconds Batch commit latency.\n")
	sb.WriteString("# TYPE linkchecker_commit_latency_seconds histogram\n")
	appendHistogram(&sb, "linkchecker_commit_latency_seconds", commitLatency, "%.3f")

	_, _ = w.Write([]byte(sb.String()))
}

// appendHistogram writes a Prometheus histogram (buckets, +Inf, sum, count) to sb.
// leFmt formats bucket bounds (e.g. "%.2f").
func appendHistogram(sb *strings.Builder, name string, h *histogram, leFmt string) {
	var cumulative uint64
	for i, bound := range h.buckets {
		cumulative += atomic.LoadUint64(&h.counts[i])
		sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%s\"} %d\n", name, fmt.Sprintf(leFmt, bound), cumulative))
	}
	cumulative += atomic.LoadUint64(&h.counts[len(h.buckets)])
	sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", name, cumulative))
	sumSeconds := float64(atomic.LoadUint64(&h.sumNs)) / float64(time.Second)
	sb.WriteString(fmt.Sprintf("%s_sum %.6f\n", name, sumSeconds))
	sb.WriteString(fmt.Sprintf("%s_count %d\n", name, atomic.LoadUint64(&h.count)))
}
