package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/dyno"
	"github.com/esrecorder/esrecorder/recorder/internal/testutil"
)

func startTestPool(t *testing.T, svc *testutil.FakeService, capacity, usable int) (*Pool, *dyno.Store) {
	t.Helper()
	store := dyno.NewStore()
	p, err := Start(context.Background(), svc, store, Config{Capacity: capacity, Usable: usable, AssetPath: "main.mr"})
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	return p, store
}

func TestStart_InvalidConfig(t *testing.T) {
	svc := testutil.NewFakeService()
	store := dyno.NewStore()
	_, err := Start(context.Background(), svc, store, Config{Capacity: 0, Usable: 0})
	assert.Error(t, err)
	_, err = Start(context.Background(), svc, store, Config{Capacity: 4, Usable: 5})
	assert.Error(t, err)
	_, err = Start(context.Background(), svc, store, Config{Capacity: 4, Usable: 0})
	assert.Error(t, err)
	assert.Panics(t, func() { _, _ = Start(context.Background(), nil, store, Config{Capacity: 1, Usable: 1}) })
}

func TestPool_LoadAll_ContainsFailures(t *testing.T) {
	// GIVEN 4 usable of 8, with instance 2 failing to compile
	svc := testutil.NewFakeService()
	svc.FailCompile(2, "bad asset")
	p, _ := startTestPool(t, svc, 8, 4)

	// WHEN all usable instances load
	failures, err := p.LoadAll()

	// THEN only instance 2 fails and the others are ready
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, LoadFailure{InstanceID: 2, Detail: "bad asset"}, failures[0])
	idle := p.Idle()
	ids := make([]int, len(idle))
	for i, w := range idle {
		ids[i] = w.ID()
	}
	assert.Equal(t, []int{0, 1, 3}, ids)

	// AND unused workers were never compiled
	for i := 4; i < 8; i++ {
		assert.Equal(t, 0, svc.Compiles(i), "instance %d", i)
		assert.Equal(t, PhaseUninitialized, p.Worker(i).Phase())
	}
}

func TestPool_SetUsable_ScalesWithoutRestart(t *testing.T) {
	svc := testutil.NewFakeService()
	p, _ := startTestPool(t, svc, 4, 1)
	_, err := p.LoadAll()
	require.NoError(t, err)
	assert.Len(t, p.Idle(), 1)

	require.NoError(t, p.SetUsable(3))
	assert.Len(t, p.Idle(), 1, "new workers need a load first")
	_, err = p.LoadAll()
	require.NoError(t, err)
	assert.Len(t, p.Idle(), 3)
	assert.Equal(t, 2, svc.Compiles(0), "LoadAll reloads every usable instance")

	assert.Error(t, p.SetUsable(0))
	assert.Error(t, p.SetUsable(5))
	assert.Equal(t, 3, p.Usable())
	assert.Equal(t, 4, p.Capacity())
	assert.Nil(t, p.Worker(4))
}

func TestPool_QueryInfo(t *testing.T) {
	svc := testutil.NewFakeService()
	p, _ := startTestPool(t, svc, 2, 2)

	_, err := p.QueryInfo()
	assert.ErrorIs(t, err, ErrNoReadyInstance)

	_, err = p.LoadAll()
	require.NoError(t, err)
	info, err := p.QueryInfo()
	require.NoError(t, err)
	assert.Equal(t, svc.Info, info)
}

func TestPool_States_DescribesUsedAndUnused(t *testing.T) {
	svc := testutil.NewFakeService()
	p, _ := startTestPool(t, svc, 3, 2)
	_, err := p.LoadAll()
	require.NoError(t, err)

	views := p.States(context.Background())

	require.Len(t, views, 3)
	assert.True(t, views[0].Usable)
	assert.True(t, views[0].Loaded)
	assert.Equal(t, "idle", views[0].PhaseName)
	assert.Equal(t, "ready", views[0].StatusName)
	assert.False(t, views[2].Usable)
	assert.Equal(t, "uninitialized", views[2].PhaseName)
}

func TestPool_Shutdown_IdempotentAndWaitsForInFlight(t *testing.T) {
	// GIVEN a worker inside a slow record call
	svc := testutil.NewFakeService()
	entered := make(chan struct{})
	var once sync.Once
	svc.BeforeRecord = func(int, recorder.SamplePoint) {
		once.Do(func() { close(entered) })
		time.Sleep(50 * time.Millisecond)
	}
	p, store := startTestPool(t, svc, 2, 2)
	_, err := p.LoadAll()
	require.NoError(t, err)
	w := p.Worker(0)
	done, err := w.SetRecordDemand(recorder.SamplePoint{RPM: 1000, Throttle: 100})
	require.NoError(t, err)
	<-entered

	// WHEN the pool is shut down twice, concurrently
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Shutdown()
		}()
	}
	wg.Wait()

	// THEN the in-flight record finished and every worker exited
	c, err := w.Await(done)
	require.NoError(t, err)
	assert.True(t, c.Published)
	assert.Equal(t, 1, store.Len())
	assert.True(t, p.Closed())
	for i := 0; i < p.Capacity(); i++ {
		assert.Equal(t, PhaseShutdown, p.Worker(i).Phase())
	}
	_, err = p.LoadAll()
	assert.ErrorIs(t, err, ErrShutdown)
	p.Shutdown()
}
