package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
)

func testBundle(answer string) *entities.AnswerBundle {
	return &entities.AnswerBundle{
		Answer:    answer,
		Sources:   []entities.Source{{FragmentID: "f-1", Category: "health", Similarity: 0.9}},
		CreatedAt: time.Now(),
	}
}

func TestMemoryAdapter_HitAndMissCounters(t *testing.T) {
	adapter := NewMemoryAdapter(8, time.Minute)
	ctx := context.Background()

	_, ok := adapter.Get(ctx, "unknown")
	assert.False(t, ok)

	require.NoError(t, adapter.Set(ctx, "fp-1", testBundle("answer")))

	got, ok := adapter.Get(ctx, "fp-1")
	require.True(t, ok)
	assert.Equal(t, "answer", got.Answer)

	stats := adapter.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestMemoryAdapter_TTLExpiryIsAMiss(t *testing.T) {
	adapter := NewMemoryAdapter(8, 10*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "fp-1", testBundle("answer")))

	_, ok := adapter.Get(ctx, "fp-1")
	require.True(t, ok)

	time.Sleep(25 * time.Millisecond)

	_, ok = adapter.Get(ctx, "fp-1")
	assert.False(t, ok, "expired entry must be treated as a miss")

	stats := adapter.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestMemoryAdapter_LRUEviction(t *testing.T) {
	adapter := NewMemoryAdapter(2, time.Minute)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "fp-1", testBundle("one")))
	require.NoError(t, adapter.Set(ctx, "fp-2", testBundle("two")))

	// Touch fp-1 so fp-2 is the least recently used.
	_, ok := adapter.Get(ctx, "fp-1")
	require.True(t, ok)

	require.NoError(t, adapter.Set(ctx, "fp-3", testBundle("three")))

	_, ok = adapter.Get(ctx, "fp-2")
	assert.False(t, ok, "least-recently-used entry must be evicted")

	_, ok = adapter.Get(ctx, "fp-1")
	assert.True(t, ok)

	stats := adapter.Stats()
	assert.Equal(t, uint64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Size)
}

func TestMemoryAdapter_LastWriteWins(t *testing.T) {
	adapter := NewMemoryAdapter(8, time.Minute)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, "fp-1", testBundle("first")))
	require.NoError(t, adapter.Set(ctx, "fp-1", testBundle("second")))

	got, ok := adapter.Get(ctx, "fp-1")
	require.True(t, ok)
	assert.Equal(t, "second", got.Answer)
	assert.Equal(t, 1, adapter.Stats().Size)
}

func TestMemoryAdapter_ConcurrentAccess(t *testing.T) {
	adapter := NewMemoryAdapter(64, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("fp-%d", i%8)
			for j := 0; j < 50; j++ {
				_ = adapter.Set(ctx, key, testBundle(key))
				adapter.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	stats := adapter.Stats()
	assert.LessOrEqual(t, stats.Size, 8)
}
