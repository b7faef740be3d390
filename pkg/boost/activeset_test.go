package boost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActiveSet_SecondAcquireFailsUntilReleased(t *testing.T) {
	a := newActiveSet()
	require.True(t, a.tryAcquire(7))
	require.False(t, a.tryAcquire(7), "already set, second boost must be skipped")
	a.release(7)
	require.True(t, a.tryAcquire(7), "cleared, a new session may open")
}

func TestActiveSet_IndependentTIDs(t *testing.T) {
	a := newActiveSet()
	require.True(t, a.tryAcquire(1))
	require.True(t, a.tryAcquire(2))
	require.True(t, a.isActive(1))
	require.True(t, a.isActive(2))
}

func TestActiveSet_ConcurrentAcquireOnlyOneWins(t *testing.T) {
	a := newActiveSet()
	const n = 50
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- a.tryAcquire(99)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	require.Equal(t, 1, won)
}
