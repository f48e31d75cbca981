package dyno

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Put_DuplicateKeepsFirstValue(t *testing.T) {
	// GIVEN a store holding one point
	s := NewStore()
	require.NoError(t, s.Put(100, 3000, Point{Power: 150, Torque: 350}))

	// WHEN the same key is written twice more
	for i := 0; i < 2; i++ {
		err := s.Put(100, 3000, Point{Power: 999, Torque: 999})

		// THEN every attempt reports a duplicate and the first value survives
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateSample))
		var dup *DuplicateSampleError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, 3000, dup.RPM)
		assert.Equal(t, 100, dup.Throttle)
		assert.Equal(t, Point{Power: 150, Torque: 350}, dup.Existing)
		assert.Equal(t, Point{Power: 999, Torque: 999}, dup.Rejected)
	}
	p, ok := s.Get(100, 3000)
	require.True(t, ok)
	assert.Equal(t, Point{Power: 150, Torque: 350}, p)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Snapshot_IsolatedFromLaterWrites(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(0, 2000, Point{Power: 1, Torque: 2}))
	require.NoError(t, s.Put(0, 1000, Point{Power: 3, Torque: 4}))

	snap := s.Snapshot()
	require.NoError(t, s.Put(0, 1500, Point{Power: 5, Torque: 6}))

	assert.Equal(t, 2, snap.Len())
	curve := snap.Curve(0)
	require.Len(t, curve, 2)
	assert.Equal(t, 1000, curve[0].RPM, "curves are sorted by rpm")
	assert.Equal(t, 2000, curve[1].RPM)
	_, ok := snap.Get(0, 1500)
	assert.False(t, ok)
	assert.Equal(t, 3, s.Len())
}

func TestStore_Reset_CreatesEmptyBuckets(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(50, 1000, Point{}))

	s.Reset([]int{100, 0})

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Len())
	assert.Equal(t, []int{0, 100}, snap.Throttles())
	assert.Empty(t, snap.Curve(100))

	s.Clear()
	assert.Empty(t, s.Snapshot().Throttles())
}

func TestStore_ConcurrentPut_SameAndDistinctKeys(t *testing.T) {
	// GIVEN many writers, half of them racing on one key
	s := NewStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	duplicates := 0
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			rpm := 1000 + w*100
			if w%2 == 0 {
				rpm = 500
			}
			if err := s.Put(100, rpm, Point{Power: float64(w)}); err != nil {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	// THEN exactly one writer won the shared key and the structure is intact
	assert.Equal(t, 7, duplicates)
	assert.Equal(t, 9, s.Len())
	assert.Len(t, s.Snapshot().Curve(100), 9)
}

func TestStore_OnChange_ReceivesSnapshots(t *testing.T) {
	s := NewStore()
	var seen []int
	s.OnChange(func(snap Snapshot) { seen = append(seen, snap.Len()) })

	s.Reset([]int{0, 100})
	require.NoError(t, s.Put(0, 1000, Point{}))
	require.NoError(t, s.Put(100, 1000, Point{}))
	require.Error(t, s.Put(100, 1000, Point{}))

	// duplicates do not fire the hook
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestSnapshot_PeakAndCurves(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(100, 3000, Point{Power: 200, Torque: 400}))
	require.NoError(t, s.Put(100, 6000, Point{Power: 300, Torque: 350}))
	require.NoError(t, s.Put(0, 3000, Point{Power: -10, Torque: -20}))

	snap := s.Snapshot()
	power, torque, ok := snap.Peak()
	require.True(t, ok)
	assert.Equal(t, 6000, power.RPM)
	assert.Equal(t, 3000, torque.RPM)

	views := snap.Curves()
	require.Len(t, views, 2)
	assert.Equal(t, 0, views[0].Throttle)
	assert.Equal(t, 100, views[1].Throttle)

	_, _, ok = NewStore().Snapshot().Peak()
	assert.False(t, ok)
}
