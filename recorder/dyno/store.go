// Package dyno aggregates recorded samples into per-throttle dyno curves.
//
// The store maps throttle -> RPM -> (power, torque). It is written by every
// instance worker concurrently and read by exporters and live displays.
package dyno

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateSample is wrapped by DuplicateSampleError.
var ErrDuplicateSample = errors.New("duplicate sample")

// Point is one dyno measurement.
type Point struct {
	Power  float64 `json:"power"`
	Torque float64 `json:"torque"`
}

// Sample is a Point at a given RPM.
type Sample struct {
	RPM int `json:"rpm"`
	Point
}

// DuplicateSampleError reports a second write to an occupied key. Existing
// holds the retained (first) value, Rejected the value that was dropped.
type DuplicateSampleError struct {
	Throttle int
	RPM      int
	Existing Point
	Rejected Point
}

func (e *DuplicateSampleError) Error() string {
	return fmt.Sprintf("duplicate sample %d/%d: kept power=%g torque=%g, dropped power=%g torque=%g",
		e.RPM, e.Throttle, e.Existing.Power, e.Existing.Torque, e.Rejected.Power, e.Rejected.Torque)
}

func (e *DuplicateSampleError) Unwrap() error { return ErrDuplicateSample }

// Store is the throttle -> RPM -> Point aggregation.
//
// Thread-safety: all methods are safe for concurrent use. Change hooks run
// on the writer's goroutine after the lock is released.
type Store struct {
	mu      sync.RWMutex
	buckets map[int]map[int]Point
	count   int

	hookMu sync.RWMutex
	hooks  []func(Snapshot)
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{buckets: make(map[int]map[int]Point)}
}

// OnChange registers fn to receive a fresh snapshot after every accepted
// Put and every Reset. This is the live display refresh hook.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Store) notify() {
	s.hookMu.RLock()
	hooks := s.hooks
	s.hookMu.RUnlock()
	if len(hooks) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range hooks {
		fn(snap)
	}
}

// Put records (power, torque) at (throttle, rpm). If the key is occupied
// the existing value is kept and a *DuplicateSampleError is returned.
func (s *Store) Put(throttle, rpm int, p Point) error {
	s.mu.Lock()
	bucket, ok := s.buckets[throttle]
	if !ok {
		bucket = make(map[int]Point)
		s.buckets[throttle] = bucket
	}
	if existing, dup := bucket[rpm]; dup {
		s.mu.Unlock()
		return &DuplicateSampleError{Throttle: throttle, RPM: rpm, Existing: existing, Rejected: p}
	}
	bucket[rpm] = p
	s.count++
	s.mu.Unlock()

	s.notify()
	return nil
}

// Get returns the value at (throttle, rpm).
func (s *Store) Get(throttle, rpm int) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.buckets[throttle][rpm]
	return p, ok
}

// Len returns the number of stored points across all throttles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Clear removes every bucket.
func (s *Store) Clear() {
	s.Reset(nil)
}

// Reset clears the store and pre-creates an empty bucket for each throttle,
// so displays show every configured curve from the start of a sweep.
func (s *Store) Reset(throttles []int) {
	s.mu.Lock()
	s.buckets = make(map[int]map[int]Point, len(throttles))
	for _, t := range throttles {
		s.buckets[t] = make(map[int]Point)
	}
	s.count = 0
	s.mu.Unlock()

	s.notify()
}

// Snapshot copies the current contents into an immutable view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	curves := make(map[int][]Sample, len(s.buckets))
	for throttle, bucket := range s.buckets {
		samples := make([]Sample, 0, len(bucket))
		for rpm, p := range bucket {
			samples = append(samples, Sample{RPM: rpm, Point: p})
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i].RPM < samples[j].RPM })
		curves[throttle] = samples
	}
	return Snapshot{curves: curves, count: s.count}
}

// Snapshot is a read-only copy of a Store. Curves are sorted by RPM.
type Snapshot struct {
	curves map[int][]Sample
	count  int
}

// Throttles returns the throttle keys in ascending order.
func (s Snapshot) Throttles() []int {
	out := make([]int, 0, len(s.curves))
	for t := range s.curves {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Curve returns the samples for a throttle sorted by RPM. The returned
// slice is a copy.
func (s Snapshot) Curve(throttle int) []Sample {
	return append([]Sample(nil), s.curves[throttle]...)
}

// Get looks up one point.
func (s Snapshot) Get(throttle, rpm int) (Point, bool) {
	samples := s.curves[throttle]
	i := sort.Search(len(samples), func(i int) bool { return samples[i].RPM >= rpm })
	if i < len(samples) && samples[i].RPM == rpm {
		return samples[i].Point, true
	}
	return Point{}, false
}

// Len returns the number of points in the snapshot.
func (s Snapshot) Len() int { return s.count }

// CurveView is the JSON shape of one throttle curve.
type CurveView struct {
	Throttle int      `json:"throttle"`
	Samples  []Sample `json:"samples"`
}

// Curves returns every curve in ascending throttle order, for encoding.
func (s Snapshot) Curves() []CurveView {
	views := make([]CurveView, 0, len(s.curves))
	for _, t := range s.Throttles() {
		views = append(views, CurveView{Throttle: t, Samples: s.Curve(t)})
	}
	return views
}

// Peak returns the highest power and highest torque samples across all
// curves; ok is false for an empty snapshot.
func (s Snapshot) Peak() (power, torque Sample, ok bool) {
	for _, samples := range s.curves {
		for _, smp := range samples {
			if !ok || smp.Power > power.Power {
				power = smp
			}
			if !ok || smp.Torque > torque.Torque {
				torque = smp
			}
			ok = true
		}
	}
	return power, torque, ok
}
