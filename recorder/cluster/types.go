// Package cluster runs a pool of simulation instances.
//
// Each Worker owns one recorder.Handle and drives it through a small state
// machine; the Pool owns a fixed-capacity set of workers of which only the
// first Usable are driven by sweeps.
package cluster

import (
	"errors"
	"fmt"

	"github.com/esrecorder/esrecorder/recorder"
)

var (
	// ErrBusy is returned when a demand is issued while another is outstanding.
	ErrBusy = errors.New("instance busy: demand already outstanding")
	// ErrNotLoaded is returned for record or info demands on an instance
	// that has not loaded successfully.
	ErrNotLoaded = errors.New("instance not loaded")
	// ErrShutdown is returned once the worker or pool has been shut down.
	ErrShutdown = errors.New("instance shut down")
	// ErrSampleFailed marks a record call whose outcome reported failure.
	ErrSampleFailed = errors.New("sample recording failed")
	// ErrNoReadyInstance is returned when no usable instance is loaded.
	ErrNoReadyInstance = errors.New("no ready instance")
)

// Phase is the worker's state machine position.
//
//	Uninitialized -> Loading -> Idle | Error
//	Idle -> Recording -> Idle
//	Idle -> QueryingInfo -> Idle
//	Error -> Loading (reload)
//	any -> Shutdown
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseIdle
	PhaseLoading
	PhaseRecording
	PhaseQueryingInfo
	PhaseError
	PhaseShutdown
)

var phaseNames = [...]string{
	PhaseUninitialized: "uninitialized",
	PhaseIdle:          "idle",
	PhaseLoading:       "loading",
	PhaseRecording:     "recording",
	PhaseQueryingInfo:  "querying-info",
	PhaseError:         "error",
	PhaseShutdown:      "shutdown",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Status is the orchestration-level view of a phase.
type Status int

const (
	// StatusReady accepts a new demand.
	StatusReady Status = iota
	// StatusBusy has a demand in flight that must not be reissued.
	StatusBusy
	// StatusError is unusable until reloaded (or, for shut down
	// instances, forever).
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBusy:
		return "busy"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Status maps a phase onto Ready/Busy/Error.
func (p Phase) Status() Status {
	switch p {
	case PhaseUninitialized, PhaseIdle:
		return StatusReady
	case PhaseLoading, PhaseRecording, PhaseQueryingInfo:
		return StatusBusy
	default:
		return StatusError
	}
}

// Demand is the work requested of a worker.
type Demand int

const (
	DemandNone Demand = iota
	DemandLoad
	DemandRecordOne
	DemandQueryInfo
	DemandShutdown
)

func (d Demand) String() string {
	switch d {
	case DemandNone:
		return "none"
	case DemandLoad:
		return "load"
	case DemandRecordOne:
		return "record"
	case DemandQueryInfo:
		return "query-info"
	case DemandShutdown:
		return "shutdown"
	}
	return fmt.Sprintf("Demand(%d)", int(d))
}

func (d Demand) busyPhase() Phase {
	switch d {
	case DemandLoad:
		return PhaseLoading
	case DemandRecordOne:
		return PhaseRecording
	case DemandQueryInfo:
		return PhaseQueryingInfo
	}
	return PhaseIdle
}

// LoadError is a failed Load: compile or initialise returned false, or
// the service could not be reached.
type LoadError struct {
	InstanceID int
	// Detail is the service's error log, or the transport error.
	Detail string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("instance %d failed to load: %s", e.InstanceID, e.Detail)
}

// Completion is the result of one demand, delivered once on the channel
// returned when the demand was issued.
type Completion struct {
	InstanceID int
	Demand     Demand
	// Point and Outcome are set for DemandRecordOne.
	Point   recorder.SamplePoint
	Outcome recorder.SampleOutcome
	// Published is true when the outcome was stored in the dyno store.
	Published bool
	// Info is set for DemandQueryInfo.
	Info recorder.EngineInfo
	// Err is a *LoadError, a *dyno.DuplicateSampleError, an error wrapping
	// ErrSampleFailed, or a transport error.
	Err error
}

// Event is emitted to observers on every phase change.
type Event struct {
	InstanceID int
	Phase      Phase
	Status     Status
	Demand     Demand
}

// Observer receives worker events. It runs on the worker's goroutine or
// on the goroutine issuing the demand and must not block.
type Observer func(Event)
