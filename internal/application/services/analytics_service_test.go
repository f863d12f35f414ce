package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsRecorder_CountsAndErrorRate(t *testing.T) {
	recorder := NewAnalyticsRecorder()

	recorder.Record("query", 200, 10*time.Millisecond)
	recorder.Record("query", 200, 12*time.Millisecond)
	recorder.Record("query", 502, 8*time.Millisecond)
	recorder.Record("query", 400, 1*time.Millisecond)

	snap := recorder.Snapshot()
	require.Contains(t, snap, "query")

	query := snap["query"]
	assert.Equal(t, uint64(4), query.Count)
	assert.Equal(t, uint64(2), query.Errors)
	assert.InDelta(t, 0.5, query.ErrorRate, 1e-9)
}

func TestAnalyticsRecorder_EndpointsAreIndependent(t *testing.T) {
	recorder := NewAnalyticsRecorder()

	recorder.Record("query", 200, time.Millisecond)
	recorder.Record("pipeline.embedding", 502, time.Millisecond)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap["query"].Count)
	assert.Equal(t, uint64(0), snap["query"].Errors)
	assert.Equal(t, uint64(1), snap["pipeline.embedding"].Errors)
}

func TestAnalyticsRecorder_Percentiles(t *testing.T) {
	recorder := NewAnalyticsRecorder()

	// 1ms..100ms, one sample each.
	for i := 1; i <= 100; i++ {
		recorder.Record("query", 200, time.Duration(i)*time.Millisecond)
	}

	snap := recorder.Snapshot()["query"]
	assert.InDelta(t, 50, snap.P50Ms, 1)
	assert.InDelta(t, 95, snap.P95Ms, 1)
	assert.InDelta(t, 99, snap.P99Ms, 1)
}

func TestAnalyticsRecorder_RingOverwritesOldestButKeepsCounters(t *testing.T) {
	recorder := NewAnalyticsRecorder()

	// Fill the ring with slow samples, then wrap it entirely with fast ones.
	for i := 0; i < sampleRingSize; i++ {
		recorder.Record("query", 200, 100*time.Millisecond)
	}
	for i := 0; i < sampleRingSize; i++ {
		recorder.Record("query", 200, time.Millisecond)
	}

	snap := recorder.Snapshot()["query"]
	assert.Equal(t, uint64(2*sampleRingSize), snap.Count, "counters outlive the sample ring")
	assert.InDelta(t, 1, snap.P99Ms, 0.5, "percentiles reflect only the retained window")
}

func TestAnalyticsRecorder_SnapshotDoesNotReset(t *testing.T) {
	recorder := NewAnalyticsRecorder()
	recorder.Record("query", 200, time.Millisecond)

	first := recorder.Snapshot()
	second := recorder.Snapshot()
	assert.Equal(t, first["query"].Count, second["query"].Count)
}

func TestAnalyticsRecorder_Reset(t *testing.T) {
	recorder := NewAnalyticsRecorder()
	recorder.Record("query", 200, time.Millisecond)
	recorder.Record("cache_lookup", 404, time.Millisecond)

	recorder.Reset()

	assert.Empty(t, recorder.Snapshot())
}

func TestPercentile_EdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.5))
	assert.Equal(t, 7.0, percentile([]float64{7}, 0.99))
}
