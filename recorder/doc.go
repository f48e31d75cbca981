// Package recorder provides the core of the engine sample recorder.
//
// # Reading Guide
//
// Start with these files to understand the recording pipeline:
//   - sample.go: the sweep grid and the per-point request/outcome types
//   - service.go: the boundary to the external engine-simulation service
//     and the per-instance Handle adapter
//   - naming.go: how engine names become directory and file names
//
// # Architecture
//
// The recorder package defines the shared types; behaviour lives in
// sub-packages:
//   - recorder/cluster/: instance workers and the instance pool
//   - recorder/sweep/: partitions a grid across the pool and joins the result
//   - recorder/dyno/: throttle -> RPM -> (power, torque) aggregation
//   - recorder/curve/: persisted <name>.csv and <name>.engine files
//   - recorder/export/: torque curve extrapolation and export artifacts
//   - recorder/esclient/: HTTP implementation of Service
//   - recorder/trace/, recorder/stats/, recorder/history/, recorder/live/:
//     observability of a sweep
package recorder
