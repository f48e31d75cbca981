// Package sweep drives a recording sweep across the instance pool.
//
// The grid is enumerated RPM-major, throttle-minor and point k goes to
// instance slot k mod U. Each slot records its points one at a time, in
// order; slots run in parallel. A sweep can be aborted cooperatively: no
// new point is dispatched once Abort is called, in-flight points finish,
// and the result reports what was missed.
package sweep

import "github.com/esrecorder/esrecorder/recorder"

// Partition assigns points[k] to slot k mod usable, preserving order
// within each slot. Returns usable slots, some possibly empty. Panics if
// usable < 1.
func Partition(points []recorder.SamplePoint, usable int) [][]recorder.SamplePoint {
	if usable < 1 {
		panic("sweep.Partition: usable must be >= 1")
	}
	slots := make([][]recorder.SamplePoint, usable)
	for k, p := range points {
		slots[k%usable] = append(slots[k%usable], p)
	}
	return slots
}
