// Package testutil provides shared test infrastructure for the recorder.
// It holds an in-memory simulation service and float assertion helpers
// used across recorder sub-package tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/esrecorder/esrecorder/recorder"
)

// FakeService is an in-memory recorder.Service. Power and torque are a
// deterministic function of the sample point. All methods are safe for
// concurrent use.
type FakeService struct {
	// Info is returned by the engine property calls.
	Info recorder.EngineInfo
	// Latency is slept inside every RecordSample call.
	Latency time.Duration
	// Curve overrides the default power/torque model when set.
	Curve func(p recorder.SamplePoint) (power, torque float64)
	// BeforeRecord runs at the start of every RecordSample call.
	BeforeRecord func(id int, p recorder.SamplePoint)

	mu          sync.Mutex
	failCompile map[int]string
	failRecord  map[[2]int]bool
	recorded    map[int][]recorder.SamplePoint
	active      map[int]int
	violation   bool
	compiles    map[int]int
	states      map[int]recorder.EngineState
}

// NewFakeService returns a service whose instances all compile.
func NewFakeService() *FakeService {
	return &FakeService{
		Info:        recorder.EngineInfo{Name: "Test Engine", Redline: 7000, Displacement: 2.0},
		failCompile: make(map[int]string),
		failRecord:  make(map[[2]int]bool),
		recorded:    make(map[int][]recorder.SamplePoint),
		active:      make(map[int]int),
		compiles:    make(map[int]int),
		states:      make(map[int]recorder.EngineState),
	}
}

// FailCompile makes instance id fail to compile, reporting errorLog.
func (f *FakeService) FailCompile(id int, errorLog string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCompile[id] = errorLog
}

// HealCompile lets instance id compile again.
func (f *FakeService) HealCompile(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failCompile, id)
}

// FailRecord makes the sample at (rpm, throttle) come back unsuccessful.
func (f *FakeService) FailRecord(rpm, throttle int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRecord[[2]int{rpm, throttle}] = true
}

// DefaultCurve is the power/torque model used when Curve is nil.
func DefaultCurve(p recorder.SamplePoint) (power, torque float64) {
	return float64(p.RPM)/100 + float64(p.Throttle), float64(p.Throttle)*3 + float64(p.RPM)/1000
}

func (f *FakeService) enter(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[id]++
	if f.active[id] > 1 {
		f.violation = true
	}
}

func (f *FakeService) leave(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[id]--
}

func (f *FakeService) Compile(ctx context.Context, id int, assetPath string) (bool, error) {
	f.enter(id)
	defer f.leave(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiles[id]++
	if _, fail := f.failCompile[id]; fail {
		return false, nil
	}
	f.states[id] = recorder.EnginePreparing
	return true, nil
}

func (f *FakeService) Initialize(ctx context.Context, id int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[id] = recorder.EngineIdle
	return true, nil
}

func (f *FakeService) State(ctx context.Context, id int) (recorder.EngineState, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[id], 0, nil
}

func (f *FakeService) EngineName(ctx context.Context, id int) (string, error) {
	return f.Info.Name, nil
}

func (f *FakeService) EngineRedline(ctx context.Context, id int) (float64, error) {
	return f.Info.Redline, nil
}

func (f *FakeService) EngineDisplacement(ctx context.Context, id int) (float64, error) {
	return f.Info.Displacement, nil
}

func (f *FakeService) RecordSample(ctx context.Context, id int, p recorder.SamplePoint) (recorder.SampleOutcome, error) {
	f.enter(id)
	defer f.leave(id)
	if f.BeforeRecord != nil {
		f.BeforeRecord(id, p)
	}
	start := time.Now()
	if f.Latency > 0 {
		time.Sleep(f.Latency)
	}

	f.mu.Lock()
	f.recorded[id] = append(f.recorded[id], p)
	failed := f.failRecord[[2]int{p.RPM, p.Throttle}]
	f.mu.Unlock()

	if failed {
		return recorder.SampleOutcome{Success: false}, nil
	}
	curve := f.Curve
	if curve == nil {
		curve = DefaultCurve
	}
	power, torque := curve(p)
	return recorder.SampleOutcome{
		Success:       true,
		Power:         power,
		Torque:        torque,
		Ratio:         1,
		ElapsedMillis: time.Since(start).Milliseconds() + 1,
	}, nil
}

func (f *FakeService) ErrorLog(ctx context.Context, id int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if log, ok := f.failCompile[id]; ok {
		return log, nil
	}
	return "", nil
}

// Recorded returns the points instance id recorded, in call order.
func (f *FakeService) Recorded(id int) []recorder.SamplePoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorder.SamplePoint(nil), f.recorded[id]...)
}

// RecordedInstances returns the instance ids that recorded anything, sorted.
func (f *FakeService) RecordedInstances() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int, 0, len(f.recorded))
	for id := range f.recorded {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TotalRecorded returns the number of RecordSample calls across instances.
func (f *FakeService) TotalRecorded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, pts := range f.recorded {
		n += len(pts)
	}
	return n
}

// Compiles returns how often instance id was compiled.
func (f *FakeService) Compiles(id int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.compiles[id]
}

// ConcurrentCallSeen reports whether any instance was ever entered by two
// calls at once.
func (f *FakeService) ConcurrentCallSeen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.violation
}

// String is used in test failure output.
func (f *FakeService) String() string {
	return fmt.Sprintf("FakeService{recorded=%d}", f.TotalRecorded())
}
