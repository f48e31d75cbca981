package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/dyno"
)

// request is one demand handed to the worker goroutine.
type request struct {
	demand Demand
	point  recorder.SamplePoint
	done   chan Completion
}

// Worker owns one simulation instance and executes one demand at a time.
//
// The issuing side writes a demand only while the worker is Ready; the
// worker goroutine publishes the resulting phase and clears the demand
// before delivering the Completion, so the issuer may issue the next
// demand as soon as it has received one.
//
// Thread-safety: all exported methods are safe for concurrent use. The
// handle is only ever used from the worker goroutine.
type Worker struct {
	id        int
	handle    *recorder.Handle
	store     *dyno.Store
	assetPath string
	ctx       context.Context
	observer  Observer

	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
	exited   chan struct{}

	mu       sync.Mutex
	phase    Phase
	demand   Demand
	loaded   bool
	lastErr  string
	info     recorder.EngineInfo
	lastSeen recorder.SampleOutcome
}

// NewWorker creates a worker for instance id. The worker goroutine is not
// running until Start is called.
// Panics if handle or store is nil.
func NewWorker(ctx context.Context, handle *recorder.Handle, store *dyno.Store, assetPath string, observer Observer) *Worker {
	if handle == nil {
		panic("cluster.NewWorker: nil handle")
	}
	if store == nil {
		panic("cluster.NewWorker: nil store")
	}
	return &Worker{
		id:        handle.ID(),
		handle:    handle,
		store:     store,
		assetPath: assetPath,
		ctx:       ctx,
		observer:  observer,
		requests:  make(chan request, 1),
		quit:      make(chan struct{}),
		exited:    make(chan struct{}),
		phase:     PhaseUninitialized,
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

// ID returns the instance index.
func (w *Worker) ID() int { return w.id }

// Phase returns the current state machine position.
func (w *Worker) Phase() Phase {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// Status returns the orchestration-level status.
func (w *Worker) Status() Status {
	return w.Phase().Status()
}

// Demand returns the outstanding demand, DemandNone when idle.
func (w *Worker) Demand() Demand {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.demand
}

// Loaded reports whether the last Load succeeded.
func (w *Worker) Loaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded
}

// Ready reports whether the worker can take a record demand right now.
func (w *Worker) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded && w.phase == PhaseIdle
}

// LastError returns the detail of the last failed Load.
func (w *Worker) LastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Info returns the engine info fetched by the last QueryInfo.
func (w *Worker) Info() recorder.EngineInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.info
}

// LastOutcome returns the outcome of the most recent record demand.
func (w *Worker) LastOutcome() recorder.SampleOutcome {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Exited is closed once the worker goroutine has returned.
func (w *Worker) Exited() <-chan struct{} { return w.exited }

// SetDemand issues Load, QueryInfo or Shutdown. Record demands carry a
// point and go through SetRecordDemand. Shutdown is accepted in any state
// and returns a nil channel; wait on Exited instead.
func (w *Worker) SetDemand(d Demand) (<-chan Completion, error) {
	switch d {
	case DemandShutdown:
		w.stop()
		return nil, nil
	case DemandRecordOne:
		return nil, fmt.Errorf("instance %d: record demand needs a sample point", w.id)
	case DemandNone:
		return nil, fmt.Errorf("instance %d: cannot issue an empty demand", w.id)
	}
	return w.submit(request{demand: d})
}

// SetRecordDemand issues a record demand for one point.
func (w *Worker) SetRecordDemand(point recorder.SamplePoint) (<-chan Completion, error) {
	return w.submit(request{demand: DemandRecordOne, point: point})
}

func (w *Worker) submit(req request) (<-chan Completion, error) {
	w.mu.Lock()
	select {
	case <-w.quit:
		w.mu.Unlock()
		return nil, ErrShutdown
	default:
	}
	if w.demand != DemandNone {
		outstanding := w.demand
		w.mu.Unlock()
		logrus.Warnf("instance %d: rejected %s demand, %s still outstanding", w.id, req.demand, outstanding)
		return nil, ErrBusy
	}
	if req.demand != DemandLoad && (!w.loaded || w.phase != PhaseIdle) {
		phase := w.phase
		w.mu.Unlock()
		logrus.Warnf("instance %d: rejected %s demand in phase %s", w.id, req.demand, phase)
		return nil, ErrNotLoaded
	}
	req.done = make(chan Completion, 1)
	w.demand = req.demand
	w.phase = req.demand.busyPhase()
	ev := w.eventLocked()
	w.mu.Unlock()

	w.emit(ev)
	// Never blocks: capacity 1 and at most one demand is outstanding.
	w.requests <- req
	return req.done, nil
}

// Await blocks until the demand behind done completes or the worker exits
// without running it.
func (w *Worker) Await(done <-chan Completion) (Completion, error) {
	select {
	case c := <-done:
		return c, nil
	case <-w.exited:
		select {
		case c := <-done:
			return c, nil
		default:
			return Completion{InstanceID: w.id}, ErrShutdown
		}
	}
}

func (w *Worker) stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}

func (w *Worker) run() {
	defer close(w.exited)
	for {
		select {
		case <-w.quit:
			w.mu.Lock()
			w.phase = PhaseShutdown
			w.demand = DemandNone
			ev := w.eventLocked()
			w.mu.Unlock()
			w.emit(ev)
			logrus.Debugf("instance %d exited", w.id)
			return
		case req := <-w.requests:
			c, next := w.execute(req)
			w.complete(req, c, next)
		}
	}
}

func (w *Worker) execute(req request) (Completion, Phase) {
	c := Completion{InstanceID: w.id, Demand: req.demand, Point: req.point}
	switch req.demand {
	case DemandLoad:
		ok, err := w.handle.Compile(w.ctx, w.assetPath)
		if err != nil || !ok {
			c.Err = &LoadError{InstanceID: w.id, Detail: w.loadFailureDetail(err)}
			logrus.Warnf("%v", c.Err)
			return c, PhaseError
		}
		logrus.Debugf("instance %d loaded %s", w.id, w.assetPath)
		return c, PhaseIdle

	case DemandRecordOne:
		out, err := w.handle.RecordSample(w.ctx, req.point)
		c.Outcome = out
		switch {
		case err != nil:
			c.Err = fmt.Errorf("instance %d: record %s: %w", w.id, req.point, err)
		case !out.Success:
			c.Err = fmt.Errorf("instance %d: record %s: %w", w.id, req.point, ErrSampleFailed)
		default:
			throttle, rpm := req.point.Key()
			if err := w.store.Put(throttle, rpm, dyno.Point{Power: out.Power, Torque: out.Torque}); err != nil {
				c.Err = err
			} else {
				c.Published = true
			}
		}
		if c.Err != nil {
			logrus.Warnf("%v", c.Err)
		}
		return c, PhaseIdle

	case DemandQueryInfo:
		info, err := w.handle.EngineInfo(w.ctx)
		if err != nil {
			c.Err = fmt.Errorf("instance %d: query info: %w", w.id, err)
			logrus.Warnf("%v", c.Err)
		}
		c.Info = info
		return c, PhaseIdle
	}
	c.Err = fmt.Errorf("instance %d: unexpected demand %s", w.id, req.demand)
	return c, w.Phase()
}

func (w *Worker) loadFailureDetail(callErr error) string {
	if callErr != nil {
		return callErr.Error()
	}
	log, err := w.handle.ErrorLog(w.ctx)
	if err != nil {
		return fmt.Sprintf("compile failed; error log unavailable: %v", err)
	}
	if log == "" {
		return "compile failed"
	}
	return log
}

func (w *Worker) complete(req request, c Completion, next Phase) {
	w.mu.Lock()
	w.phase = next
	w.demand = DemandNone
	switch req.demand {
	case DemandLoad:
		var le *LoadError
		if errors.As(c.Err, &le) {
			w.loaded = false
			w.lastErr = le.Detail
		} else {
			w.loaded = true
			w.lastErr = ""
		}
	case DemandRecordOne:
		w.lastSeen = c.Outcome
	case DemandQueryInfo:
		if c.Err == nil {
			w.info = c.Info
		}
	}
	ev := w.eventLocked()
	w.mu.Unlock()

	w.emit(ev)
	req.done <- c
}

func (w *Worker) eventLocked() Event {
	return Event{InstanceID: w.id, Phase: w.phase, Status: w.phase.Status(), Demand: w.demand}
}

func (w *Worker) emit(ev Event) {
	if w.observer != nil {
		w.observer(ev)
	}
}
