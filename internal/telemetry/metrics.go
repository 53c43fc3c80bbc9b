package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metrics collects Prometheus-style metrics for the memfab engine.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	messagesTotal     map[string]int64 // key: role
	compressionsTotal map[string]int64 // key: status
	compressedTotal   int64            // messages rewritten by compression
	searchesTotal     int64
	generationsTotal  map[string]int64 // key: model,status
	tokensTotal       map[string]int64 // key: model

	// Histograms (simplified: bucket counts + sum + count)
	searchDurations *histogram
}

type histogram struct {
	buckets []float64
	counts  []int64
	sum     float64
	count   int64
}

var defaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

func newHistogram() *histogram {
	return &histogram{
		buckets: defaultBuckets,
		counts:  make([]int64, len(defaultBuckets)+1), // +1 for +Inf
	}
}

func (h *histogram) observe(value float64) {
	h.sum += value
	h.count++
	for i, b := range h.buckets {
		if value <= b {
			h.counts[i]++
		}
	}
	h.counts[len(h.buckets)]++ // +Inf always counts
}

// NewMetrics creates a new Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		messagesTotal:     make(map[string]int64),
		compressionsTotal: make(map[string]int64),
		generationsTotal:  make(map[string]int64),
		tokensTotal:       make(map[string]int64),
		searchDurations:   newHistogram(),
	}
}

// RecordMessageStored increments the stored-message counter for a role.
func (m *Metrics) RecordMessageStored(role string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesTotal[role]++
}

// RecordCompression records a compression pass and how many messages it rewrote.
func (m *Metrics) RecordCompression(status string, rewritten int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compressionsTotal[status]++
	m.compressedTotal += int64(rewritten)
}

// RecordSearch records a similarity search.
func (m *Metrics) RecordSearch(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchesTotal++
	m.searchDurations.observe(duration.Seconds())
}

// RecordGeneration records a completed generation call.
func (m *Metrics) RecordGeneration(model, status string, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generationsTotal[fmt.Sprintf("%s,%s", model, status)]++
	m.tokensTotal[model] += int64(tokens)
}

// Handler returns an HTTP handler that serves Prometheus-format metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var sb strings.Builder

		sb.WriteString("# HELP memfab_messages_total Messages stored\n")
		sb.WriteString("# TYPE memfab_messages_total counter\n")
		for _, role := range sortedKeys(m.messagesTotal) {
			fmt.Fprintf(&sb, "memfab_messages_total{role=%q} %d\n", role, m.messagesTotal[role])
		}
		sb.WriteString("\n")

		sb.WriteString("# HELP memfab_compressions_total Compression passes\n")
		sb.WriteString("# TYPE memfab_compressions_total counter\n")
		for _, status := range sortedKeys(m.compressionsTotal) {
			fmt.Fprintf(&sb, "memfab_compressions_total{status=%q} %d\n", status, m.compressionsTotal[status])
		}
		fmt.Fprintf(&sb, "memfab_compressed_messages_total %d\n", m.compressedTotal)
		sb.WriteString("\n")

		sb.WriteString("# HELP memfab_searches_total Similarity searches\n")
		sb.WriteString("# TYPE memfab_searches_total counter\n")
		fmt.Fprintf(&sb, "memfab_searches_total %d\n", m.searchesTotal)
		sb.WriteString("\n")

		sb.WriteString("# HELP memfab_search_duration_seconds Similarity search duration\n")
		sb.WriteString("# TYPE memfab_search_duration_seconds histogram\n")
		h := m.searchDurations
		cumulative := int64(0)
		for i, b := range h.buckets {
			cumulative += h.counts[i]
			fmt.Fprintf(&sb, "memfab_search_duration_seconds_bucket{le=\"%.3g\"} %d\n", b, cumulative)
		}
		cumulative += h.counts[len(h.buckets)]
		fmt.Fprintf(&sb, "memfab_search_duration_seconds_bucket{le=\"+Inf\"} %d\n", cumulative)
		fmt.Fprintf(&sb, "memfab_search_duration_seconds_sum %.6f\n", h.sum)
		fmt.Fprintf(&sb, "memfab_search_duration_seconds_count %d\n", h.count)
		sb.WriteString("\n")

		sb.WriteString("# HELP memfab_generations_total Generation calls\n")
		sb.WriteString("# TYPE memfab_generations_total counter\n")
		for _, key := range sortedKeys(m.generationsTotal) {
			parts := strings.SplitN(key, ",", 2)
			fmt.Fprintf(&sb, "memfab_generations_total{model=%q,status=%q} %d\n",
				parts[0], parts[1], m.generationsTotal[key])
		}
		sb.WriteString("\n")

		sb.WriteString("# HELP memfab_tokens_total Tokens consumed by generation\n")
		sb.WriteString("# TYPE memfab_tokens_total counter\n")
		for _, model := range sortedKeys(m.tokensTotal) {
			fmt.Fprintf(&sb, "memfab_tokens_total{model=%q} %d\n", model, m.tokensTotal[model])
		}

		_, _ = w.Write([]byte(sb.String()))
	})
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
