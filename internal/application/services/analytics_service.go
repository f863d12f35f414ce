package services

import (
	"sort"
	"sync"
	"time"
)

const sampleRingSize = 512

// AnalyticsSample is one recorded observation for an endpoint or stage.
type AnalyticsSample struct {
	Endpoint   string
	StatusCode int
	DurationMs float64
	Timestamp  time.Time
}

// EndpointSnapshot aggregates the samples recorded for one endpoint.
type EndpointSnapshot struct {
	Count     uint64  `json:"count"`
	Errors    uint64  `json:"errors"`
	ErrorRate float64 `json:"errorRate"`
	P50Ms     float64 `json:"p50Ms"`
	P95Ms     float64 `json:"p95Ms"`
	P99Ms     float64 `json:"p99Ms"`
}

// AnalyticsRecorder keeps process-wide counters and a fixed-size timing
// sample ring per endpoint. It is reset only by explicit operator action,
// never by normal traffic. Safe for concurrent use.
type AnalyticsRecorder struct {
	mu        sync.Mutex
	endpoints map[string]*endpointRecorder
}

type endpointRecorder struct {
	count   uint64
	errors  uint64
	samples [sampleRingSize]AnalyticsSample
	next    int
	filled  int
}

// NewAnalyticsRecorder creates an empty recorder.
func NewAnalyticsRecorder() *AnalyticsRecorder {
	return &AnalyticsRecorder{
		endpoints: make(map[string]*endpointRecorder),
	}
}

// Record appends one sample for the endpoint; the oldest sample is
// overwritten when the ring is full.
func (r *AnalyticsRecorder) Record(endpoint string, statusCode int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.endpoints[endpoint]
	if !ok {
		rec = &endpointRecorder{}
		r.endpoints[endpoint] = rec
	}

	rec.count++
	if statusCode >= 400 {
		rec.errors++
	}
	rec.samples[rec.next] = AnalyticsSample{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
		Timestamp:  time.Now(),
	}
	rec.next = (rec.next + 1) % sampleRingSize
	if rec.filled < sampleRingSize {
		rec.filled++
	}
}

// Snapshot aggregates all endpoints into counts, error rates and latency
// percentiles.
func (r *AnalyticsRecorder) Snapshot() map[string]EndpointSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]EndpointSnapshot, len(r.endpoints))
	for endpoint, rec := range r.endpoints {
		durations := make([]float64, 0, rec.filled)
		for i := 0; i < rec.filled; i++ {
			durations = append(durations, rec.samples[i].DurationMs)
		}
		sort.Float64s(durations)

		snap := EndpointSnapshot{
			Count:  rec.count,
			Errors: rec.errors,
			P50Ms:  percentile(durations, 0.50),
			P95Ms:  percentile(durations, 0.95),
			P99Ms:  percentile(durations, 0.99),
		}
		if rec.count > 0 {
			snap.ErrorRate = float64(rec.errors) / float64(rec.count)
		}
		out[endpoint] = snap
	}
	return out
}

// Reset clears all counters and samples. Operator action only.
func (r *AnalyticsRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = make(map[string]*endpointRecorder)
}

// percentile returns the nearest-rank percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
