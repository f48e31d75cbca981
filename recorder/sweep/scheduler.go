package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/cluster"
	"github.com/esrecorder/esrecorder/recorder/config"
	"github.com/esrecorder/esrecorder/recorder/curve"
	"github.com/esrecorder/esrecorder/recorder/dyno"
	"github.com/esrecorder/esrecorder/recorder/stats"
	"github.com/esrecorder/esrecorder/recorder/trace"
)

var (
	// ErrNoUsableInstances means no usable instance loaded.
	ErrNoUsableInstances = errors.New("no usable instance loaded")
	// ErrSweepInProgress means RunSweep was called while a sweep runs.
	ErrSweepInProgress = errors.New("a sweep is already in progress")
)

// Request describes one sweep.
type Request struct {
	Grid         recorder.Grid
	PrerunCount  int
	SampleLength int
	// Usable, when > 0, resizes the pool's usable count before loading.
	Usable int
	// EnginesDir receives the samples and, on completion, the persisted
	// curve. Empty records without output paths and skips persistence.
	EnginesDir string
	// Engine, when Name is empty, is queried from the pool.
	Engine recorder.EngineInfo
	// Trace, if non-nil, records every dispatch, duplicate, miss and load
	// failure.
	Trace *trace.SweepTrace
}

// Validate rejects a request before any state is touched.
func (r Request) Validate() error {
	if len(r.Grid.RPMs) == 0 {
		return &config.FieldError{Field: "rpms", Value: "[]", Reason: "at least one RPM required"}
	}
	if len(r.Grid.Throttles) == 0 {
		return &config.FieldError{Field: "throttles", Value: "[]", Reason: "at least one throttle required"}
	}
	for _, p := range r.Grid.RPMs {
		if p.RPM <= 0 {
			return &config.FieldError{Field: "rpm", Value: p.RPM, Reason: "must be > 0"}
		}
	}
	for _, t := range r.Grid.Throttles {
		if t < 0 || t > 100 {
			return &config.FieldError{Field: "throttle", Value: t, Reason: "must be in 0..100"}
		}
	}
	if r.SampleLength < 1 {
		return &config.FieldError{Field: "sample-length", Value: r.SampleLength, Reason: "must be >= 1"}
	}
	if r.PrerunCount < 0 {
		return &config.FieldError{Field: "prerun-count", Value: r.PrerunCount, Reason: "must be >= 0"}
	}
	if r.Usable < 0 {
		return &config.FieldError{Field: "usable", Value: r.Usable, Reason: "must be >= 0"}
	}
	return nil
}

// Sample names one grid point.
type Sample struct {
	RPM      int `json:"rpm"`
	Throttle int `json:"throttle"`
}

// Duplicate is a sample written twice; the first value was kept.
type Duplicate struct {
	Sample
	InstanceID int `json:"instance"`
}

// Result summarises a finished or aborted sweep.
type Result struct {
	RunID        uuid.UUID             `json:"run_id"`
	Engine       recorder.EngineInfo   `json:"engine"`
	Started      time.Time             `json:"started"`
	Elapsed      time.Duration         `json:"elapsed"`
	GridSize     int                   `json:"grid_size"`
	Instances    int                   `json:"instances"`
	Recorded     int                   `json:"recorded"`
	Failed       int                   `json:"failed"`
	Missed       []Sample              `json:"missed,omitempty"`
	Duplicates   []Duplicate           `json:"duplicates,omitempty"`
	LoadFailures []cluster.LoadFailure `json:"load_failures,omitempty"`
	Aborted      bool                  `json:"aborted"`
	// Saved is the file stem of the persisted curve, empty when the sweep
	// was aborted or persistence was disabled.
	Saved  string        `json:"saved,omitempty"`
	Timing stats.Summary `json:"timing"`
}

// Scheduler runs sweeps on a pool, one at a time.
//
// Thread-safety: RunSweep, Abort and Recording are safe for concurrent use.
type Scheduler struct {
	pool    *cluster.Pool
	store   *dyno.Store
	timings *stats.Timings

	running   atomic.Bool
	recording atomic.Bool
}

// NewScheduler returns a Scheduler over pool writing into store.
// Panics if pool or store is nil.
func NewScheduler(pool *cluster.Pool, store *dyno.Store) *Scheduler {
	if pool == nil {
		panic("sweep.NewScheduler: nil pool")
	}
	if store == nil {
		panic("sweep.NewScheduler: nil store")
	}
	return &Scheduler{pool: pool, store: store, timings: stats.NewTimings()}
}

// Recording reports whether a sweep is dispatching points.
func (s *Scheduler) Recording() bool { return s.recording.Load() }

// Abort stops dispatching new points. In-flight points finish and
// RunSweep returns a partial result.
func (s *Scheduler) Abort() {
	if s.recording.CompareAndSwap(true, false) {
		logrus.Infof("sweep abort requested")
	}
}

// RunSweep records every point of req.Grid and blocks until all slots
// drain or the sweep is aborted. Aborting, cancelling ctx or shutting the
// pool down yields a partial Result with Aborted set, not an error.
// Errors are returned only when the sweep cannot start.
func (s *Scheduler) RunSweep(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)
	if s.pool.Closed() {
		return nil, cluster.ErrShutdown
	}

	res := &Result{RunID: newRunID(), Started: time.Now(), GridSize: req.Grid.Size()}
	log := logrus.WithField("run", res.RunID.String())

	if req.Usable > 0 {
		if err := s.pool.SetUsable(req.Usable); err != nil {
			return nil, err
		}
	}
	if err := s.loadPending(req, res); err != nil {
		return nil, err
	}
	ready := s.pool.Idle()
	if len(ready) == 0 {
		return res, ErrNoUsableInstances
	}
	res.Instances = len(ready)

	res.Engine = req.Engine
	if res.Engine.Name == "" {
		info, err := s.pool.QueryInfo()
		if err != nil {
			return res, fmt.Errorf("querying engine info: %w", err)
		}
		res.Engine = info
	}

	points := req.Grid.Points(req.PrerunCount, req.SampleLength, req.EnginesDir, res.Engine.Name)
	if req.EnginesDir != "" && len(points) > 0 {
		if err := os.MkdirAll(filepath.Dir(points[0].OutputPath), 0o755); err != nil {
			return res, fmt.Errorf("creating sample dir: %w", err)
		}
	}

	s.store.Reset(req.Grid.Throttles)
	s.timings.Reset()
	log.Infof("sweep %q: %d points (%d rpms x %d throttles) on %d instances",
		res.Engine.Name, len(points), len(req.Grid.RPMs), len(req.Grid.Throttles), len(ready))

	s.recording.Store(true)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for i, slot := range Partition(points, len(ready)) {
		wg.Add(1)
		go func(w *cluster.Worker, slot []recorder.SamplePoint) {
			defer wg.Done()
			failed, dups := s.drain(ctx, w, slot, req.Trace)
			mu.Lock()
			res.Failed += failed
			res.Duplicates = append(res.Duplicates, dups...)
			mu.Unlock()
		}(ready[i], slot)
	}
	wg.Wait()

	res.Aborted = !s.recording.Swap(false) || ctx.Err() != nil || s.pool.Closed()
	res.Elapsed = time.Since(res.Started)
	res.Timing = s.timings.Summary()

	snap := s.store.Snapshot()
	res.Recorded = snap.Len()
	for _, p := range points {
		throttle, rpm := p.Key()
		if _, ok := snap.Get(throttle, rpm); ok {
			continue
		}
		res.Missed = append(res.Missed, Sample{RPM: rpm, Throttle: throttle})
		req.Trace.RecordMiss(trace.MissRecord{RPM: rpm, Throttle: throttle})
		log.Warnf("missed sample %d/%d", rpm, throttle)
	}

	if res.Aborted {
		log.Infof("sweep aborted after %s: %d/%d recorded", res.Elapsed.Round(time.Millisecond), res.Recorded, res.GridSize)
		return res, nil
	}
	if req.EnginesDir != "" {
		header := curve.EngineHeader{
			Name:         res.Engine.Name,
			Displacement: res.Engine.Displacement,
			Redline:      int(res.Engine.Redline),
			RPMs:         req.Grid.RPMValues(),
			Throttles:    req.Grid.Throttles,
		}
		stem, err := curve.Save(req.EnginesDir, header, curve.RowsFromSnapshot(snap, req.Grid))
		if err != nil {
			return res, fmt.Errorf("persisting curve: %w", err)
		}
		res.Saved = stem
	}
	log.Infof("finished recording in %dms", res.Elapsed.Milliseconds())
	return res, nil
}

// loadPending loads the usable workers that are not ready yet.
func (s *Scheduler) loadPending(req Request, res *Result) error {
	pending := false
	for _, w := range s.pool.UsableWorkers() {
		if !w.Ready() {
			pending = true
			break
		}
	}
	if !pending {
		return nil
	}
	failures, err := s.pool.LoadAll()
	if err != nil {
		return err
	}
	res.LoadFailures = failures
	for _, f := range failures {
		req.Trace.RecordLoadFailure(trace.LoadFailureRecord{InstanceID: f.InstanceID, Detail: f.Detail})
		logrus.Warnf("instance %d not used: %s", f.InstanceID, f.Detail)
	}
	return nil
}

// drain records slot on w, one point at a time, until the slot is empty
// or the sweep stops.
func (s *Scheduler) drain(ctx context.Context, w *cluster.Worker, slot []recorder.SamplePoint, st *trace.SweepTrace) (failed int, dups []Duplicate) {
	for seq, p := range slot {
		if !s.recording.Load() || s.pool.Closed() || ctx.Err() != nil {
			return failed, dups
		}
		done, err := w.SetRecordDemand(p)
		if err != nil {
			logrus.Warnf("instance %d: stopped at %s: %v", w.ID(), p, err)
			return failed, dups
		}
		c, err := w.Await(done)
		if err != nil {
			return failed, dups
		}
		rec := trace.DispatchRecord{
			InstanceID:    w.ID(),
			Sequence:      seq,
			RPM:           p.RPM,
			Throttle:      p.Throttle,
			Published:     c.Published,
			ElapsedMillis: c.Outcome.ElapsedMillis,
		}
		var dup *dyno.DuplicateSampleError
		switch {
		case c.Err == nil:
			s.timings.Record(c.Outcome.ElapsedMillis)
		case errors.As(c.Err, &dup):
			dups = append(dups, Duplicate{Sample: Sample{RPM: p.RPM, Throttle: p.Throttle}, InstanceID: w.ID()})
			st.RecordDuplicate(trace.DuplicateRecord{InstanceID: w.ID(), RPM: p.RPM, Throttle: p.Throttle})
			rec.Error = c.Err.Error()
		default:
			failed++
			rec.Error = c.Err.Error()
		}
		st.RecordDispatch(rec)
	}
	return failed, dups
}

// newRunID returns a time-ordered run identifier.
func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
