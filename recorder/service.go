package recorder

import (
	"context"
	"fmt"
)

// EngineState is the external simulation's own view of an instance.
// It is informational only; scheduling never gates on it.
type EngineState int

const (
	EngineIdle EngineState = iota
	EngineCompiling
	EnginePreparing
	EngineWarmingUp
	EngineRecording
)

var engineStateNames = map[EngineState]string{
	EngineIdle:      "idle",
	EngineCompiling: "compiling",
	EnginePreparing: "preparing",
	EngineWarmingUp: "warmup",
	EngineRecording: "recording",
}

func (s EngineState) String() string {
	if name, ok := engineStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("EngineState(%d)", int(s))
}

// ParseEngineState maps a wire name back to an EngineState.
func ParseEngineState(name string) (EngineState, error) {
	for s, n := range engineStateNames {
		if n == name {
			return s, nil
		}
	}
	return EngineIdle, fmt.Errorf("unknown engine state %q", name)
}

// EngineInfo describes the engine compiled into an instance.
type EngineInfo struct {
	Name         string  `json:"name"`
	Redline      float64 `json:"redline"`
	Displacement float64 `json:"displacement"`
}

// Service is the call boundary of the external engine-simulation service.
// Every call addresses one instance by index. Implementations must allow
// concurrent calls for different instances. Calls for the same instance
// are never issued concurrently by this module, with one exception: State
// is an observability probe and may be called while the instance is busy.
//
// The bool results carry the service's own success flag; the error result
// is reserved for failing to reach the service at all.
type Service interface {
	Compile(ctx context.Context, id int, assetPath string) (bool, error)
	Initialize(ctx context.Context, id int) (bool, error)
	State(ctx context.Context, id int) (EngineState, int, error)
	EngineName(ctx context.Context, id int) (string, error)
	EngineRedline(ctx context.Context, id int) (float64, error)
	EngineDisplacement(ctx context.Context, id int) (float64, error)
	RecordSample(ctx context.Context, id int, point SamplePoint) (SampleOutcome, error)
	// ErrorLog returns the service's error surface for an instance, read
	// after a failed Compile or Initialize.
	ErrorLog(ctx context.Context, id int) (string, error)
}

// Handle is one logical connection to an instance of the simulation
// service. It binds an instance index to a Service and does nothing else.
//
// Thread-safety: a Handle must be owned by exactly one goroutine.
type Handle struct {
	id  int
	svc Service
}

// NewHandle binds instance id of svc. Panics if svc is nil.
func NewHandle(id int, svc Service) *Handle {
	if svc == nil {
		panic("recorder.NewHandle: nil Service")
	}
	return &Handle{id: id, svc: svc}
}

// ID returns the instance index.
func (h *Handle) ID() int { return h.id }

// Compile compiles and then initialises the engine at assetPath.
// Returns false when either step reports failure.
func (h *Handle) Compile(ctx context.Context, assetPath string) (bool, error) {
	ok, err := h.svc.Compile(ctx, h.id, assetPath)
	if err != nil || !ok {
		return false, err
	}
	return h.svc.Initialize(ctx, h.id)
}

// State returns the simulation state and its 0..100 progress.
func (h *Handle) State(ctx context.Context) (EngineState, int, error) {
	return h.svc.State(ctx, h.id)
}

// EngineInfo gathers name, redline and displacement in one call.
func (h *Handle) EngineInfo(ctx context.Context) (EngineInfo, error) {
	var info EngineInfo
	var err error
	if info.Name, err = h.svc.EngineName(ctx, h.id); err != nil {
		return info, fmt.Errorf("engine name: %w", err)
	}
	if info.Redline, err = h.svc.EngineRedline(ctx, h.id); err != nil {
		return info, fmt.Errorf("engine redline: %w", err)
	}
	if info.Displacement, err = h.svc.EngineDisplacement(ctx, h.id); err != nil {
		return info, fmt.Errorf("engine displacement: %w", err)
	}
	return info, nil
}

// RecordSample records one point.
func (h *Handle) RecordSample(ctx context.Context, point SamplePoint) (SampleOutcome, error) {
	return h.svc.RecordSample(ctx, h.id, point)
}

// ErrorLog reads the service's error surface for this instance.
func (h *Handle) ErrorLog(ctx context.Context) (string, error) {
	return h.svc.ErrorLog(ctx, h.id)
}
