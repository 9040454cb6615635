package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIncrExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Now()
	current := base
	m.SetClock(func() time.Time { return current })

	count, err := m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, m.Expire(ctx, "counter", time.Minute))

	// Within the window the counter survives.
	current = base.Add(30 * time.Second)
	count, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Past the window it resets.
	current = base.Add(2 * time.Minute)
	count, err = m.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryIncrConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Incr(ctx, "shared")
		}()
	}
	wg.Wait()

	count, err := m.Incr(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(51), count)
}

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "k", "v", 0))
	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	base := time.Now()
	current := base
	m.SetClock(func() time.Time { return current })

	require.NoError(t, m.Set(ctx, "temp", "x", time.Second))
	current = base.Add(2 * time.Second)
	_, err = m.Get(ctx, "temp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStreamAppendRevRange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		_, err := m.Append(ctx, "s", map[string]string{"n": string(rune('a' + i))}, 0)
		require.NoError(t, err)
	}

	entries, err := m.RevRange(ctx, "s", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Newest first.
	assert.Equal(t, "e", entries[0].Fields["n"])
	assert.Equal(t, "d", entries[1].Fields["n"])
	assert.Equal(t, "c", entries[2].Fields["n"])
}

func TestMemoryStreamMaxLen(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 10; i++ {
		_, err := m.Append(ctx, "s", map[string]string{"i": string(rune('0' + i))}, 4)
		require.NoError(t, err)
	}

	entries, err := m.RevRange(ctx, "s", 100)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.Equal(t, "9", entries[0].Fields["i"])
}
