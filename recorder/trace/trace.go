// Package trace provides decision-trace recording for sweep analysis.
// This package has no dependencies on recorder/cluster or recorder/sweep;
// it stores pure data types.
package trace

import "sync"

// TraceLevel controls the verbosity of sweep tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSamples captures every dispatch, duplicate, miss and load failure.
	TraceLevelSamples TraceLevel = "samples"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelSamples: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DispatchRecord captures one record demand issued to an instance.
type DispatchRecord struct {
	InstanceID    int
	Sequence      int // position in the instance's partition
	RPM           int
	Throttle      int
	Published     bool
	ElapsedMillis int64
	Error         string
}

// DuplicateRecord captures a write to an occupied dyno key.
type DuplicateRecord struct {
	InstanceID int
	RPM        int
	Throttle   int
}

// MissRecord captures a grid point never recorded by sweep end.
type MissRecord struct {
	RPM      int
	Throttle int
}

// LoadFailureRecord captures an instance that failed to load.
type LoadFailureRecord struct {
	InstanceID int
	Detail     string
}

// SweepTrace collects records during one sweep.
//
// Thread-safety: Record* methods are safe for concurrent use by instance
// goroutines; read the slices only after the sweep has joined.
type SweepTrace struct {
	Level        TraceLevel
	mu           sync.Mutex
	Dispatches   []DispatchRecord
	Duplicates   []DuplicateRecord
	Misses       []MissRecord
	LoadFailures []LoadFailureRecord
}

// NewSweepTrace creates a SweepTrace ready for recording.
func NewSweepTrace(level TraceLevel) *SweepTrace {
	return &SweepTrace{
		Level:        level,
		Dispatches:   make([]DispatchRecord, 0),
		Duplicates:   make([]DuplicateRecord, 0),
		Misses:       make([]MissRecord, 0),
		LoadFailures: make([]LoadFailureRecord, 0),
	}
}

// Enabled reports whether records should be collected. Safe on nil.
func (st *SweepTrace) Enabled() bool {
	return st != nil && st.Level == TraceLevelSamples
}

// RecordDispatch appends a dispatch record.
func (st *SweepTrace) RecordDispatch(record DispatchRecord) {
	if !st.Enabled() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Dispatches = append(st.Dispatches, record)
}

// RecordDuplicate appends a duplicate-sample record.
func (st *SweepTrace) RecordDuplicate(record DuplicateRecord) {
	if !st.Enabled() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Duplicates = append(st.Duplicates, record)
}

// RecordMiss appends a missed-sample record.
func (st *SweepTrace) RecordMiss(record MissRecord) {
	if !st.Enabled() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Misses = append(st.Misses, record)
}

// RecordLoadFailure appends a load failure record.
func (st *SweepTrace) RecordLoadFailure(record LoadFailureRecord) {
	if !st.Enabled() {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.LoadFailures = append(st.LoadFailures, record)
}
