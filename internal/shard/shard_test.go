package shard

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUpdateIsAtomicPerKey(t *testing.T) {
	m := New[int](8)

	const workers = 32
	const perWorker = 200

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Update("hot", func(items map[string]int) {
					items["hot"]++
				})
			}
		}()
	}
	wg.Wait()

	v, ok := m.Get("hot")
	require.True(t, ok)
	require.Equal(t, workers*perWorker, v)
}

func TestSweepRemovesMatchingEntries(t *testing.T) {
	m := New[int](0)
	for i := 0; i < 100; i++ {
		key := strconv.Itoa(i)
		m.Update(key, func(items map[string]int) { items[key] = i })
	}
	require.Equal(t, 100, m.Len())

	removed := m.Sweep(func(_ string, v int) bool { return v%2 == 0 })
	require.Equal(t, 50, removed)
	require.Equal(t, 50, m.Len())

	_, ok := m.Get("4")
	require.False(t, ok)
	_, ok = m.Get("5")
	require.True(t, ok)
}
