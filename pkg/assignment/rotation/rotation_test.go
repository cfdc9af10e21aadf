package rotation

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FirstAdvanceLandsOnZero(t *testing.T) {
	store := NewMemory()

	next, err := store.Next(context.Background(), "rule-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}

func TestMemory_CursorWrapsAroundPool(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	got := make([]int, 0, 7)

	for range 7 {
		next, err := store.Next(ctx, "rule-1", 3)
		require.NoError(t, err)

		got = append(got, next)
	}

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, got)
}

func TestMemory_CursorsAreIndependentPerRule(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	a, err := store.Next(ctx, "rule-a", 2)
	require.NoError(t, err)

	b, err := store.Next(ctx, "rule-b", 2)
	require.NoError(t, err)

	assert.Equal(t, 0, a)
	assert.Equal(t, 0, b)
}

func TestMemory_EmptyPool(t *testing.T) {
	store := NewMemory()

	_, err := store.Next(context.Background(), "rule-1", 0)
	assert.ErrorIs(t, err, ErrEmptyPool)
}

func TestMemory_ConcurrentAdvancesNeverRepeatWithinCycle(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	const poolSize = 4

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indexes = make([]int, 0, poolSize)
	)

	for range poolSize {
		wg.Add(1)

		go func() {
			defer wg.Done()

			next, err := store.Next(ctx, "rule-1", poolSize)
			assert.NoError(t, err)

			mu.Lock()
			indexes = append(indexes, next)
			mu.Unlock()
		}()
	}

	wg.Wait()

	seen := make(map[int]bool, poolSize)
	for _, index := range indexes {
		assert.False(t, seen[index], "index %d observed twice", index)
		seen[index] = true
	}
}
