package cluster

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/dyno"
)

// Config sizes a Pool.
type Config struct {
	// Capacity is the number of workers created. Fixed for the pool's life.
	Capacity int
	// Usable is how many of them (lowest indices first) sweeps drive.
	Usable int
	// AssetPath is the engine definition every instance compiles.
	AssetPath string
	// Observer, if set, receives every worker phase change.
	Observer Observer
}

// LoadFailure names an instance that ended a LoadAll in Error.
type LoadFailure struct {
	InstanceID int    `json:"instance"`
	Detail     string `json:"detail"`
}

// InstanceView is a point-in-time description of one worker, including
// the simulation's own state for display.
type InstanceView struct {
	ID          int                  `json:"id"`
	Phase       Phase                `json:"-"`
	PhaseName   string               `json:"phase"`
	Status      Status               `json:"-"`
	StatusName  string               `json:"status"`
	Usable      bool                 `json:"usable"`
	Loaded      bool                 `json:"loaded"`
	EngineState recorder.EngineState `json:"-"`
	StateName   string               `json:"engine_state"`
	Progress    int                  `json:"progress"`
}

// Pool owns a fixed-capacity set of workers.
//
// Thread-safety: safe for concurrent use. Shutdown may be called from any
// goroutine at any time, including during a sweep.
type Pool struct {
	cfg     Config
	svc     recorder.Service
	workers []*Worker

	mu     sync.Mutex
	usable int

	quit         chan struct{}
	shutdownOnce sync.Once
}

// Start creates cfg.Capacity workers on svc and starts their goroutines.
// Returns an error if Capacity < 1 or Usable is outside 1..Capacity.
// Panics if svc or store is nil.
func Start(ctx context.Context, svc recorder.Service, store *dyno.Store, cfg Config) (*Pool, error) {
	if svc == nil {
		panic("cluster.Start: nil Service")
	}
	if store == nil {
		panic("cluster.Start: nil store")
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("pool capacity must be >= 1, got %d", cfg.Capacity)
	}
	if cfg.Usable < 1 || cfg.Usable > cfg.Capacity {
		return nil, fmt.Errorf("usable instances must be in 1..%d, got %d", cfg.Capacity, cfg.Usable)
	}
	p := &Pool{
		cfg:     cfg,
		svc:     svc,
		workers: make([]*Worker, cfg.Capacity),
		usable:  cfg.Usable,
		quit:    make(chan struct{}),
	}
	for i := range p.workers {
		w := NewWorker(ctx, recorder.NewHandle(i, svc), store, cfg.AssetPath, cfg.Observer)
		w.Start()
		p.workers[i] = w
	}
	logrus.Infof("started instance pool: capacity=%d usable=%d", cfg.Capacity, cfg.Usable)
	return p, nil
}

// Capacity returns the number of workers.
func (p *Pool) Capacity() int { return len(p.workers) }

// Usable returns how many workers sweeps drive.
func (p *Pool) Usable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usable
}

// SetUsable changes the driven worker count without restarting the pool.
// Newly included workers must be loaded before they become Ready.
func (p *Pool) SetUsable(n int) error {
	if n < 1 || n > len(p.workers) {
		return fmt.Errorf("usable instances must be in 1..%d, got %d", len(p.workers), n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.usable = n
	return nil
}

// Worker returns worker i, or nil when out of range.
func (p *Pool) Worker(i int) *Worker {
	if i < 0 || i >= len(p.workers) {
		return nil
	}
	return p.workers[i]
}

// UsableWorkers returns the workers sweeps drive, in index order.
func (p *Pool) UsableWorkers() []*Worker {
	n := p.Usable()
	return append([]*Worker(nil), p.workers[:n]...)
}

// Idle returns the usable workers that are loaded and have no demand.
func (p *Pool) Idle() []*Worker {
	var idle []*Worker
	for _, w := range p.UsableWorkers() {
		if w.Ready() {
			idle = append(idle, w)
		}
	}
	return idle
}

// Done is closed when Shutdown begins.
func (p *Pool) Done() <-chan struct{} { return p.quit }

// Closed reports whether Shutdown has begun.
func (p *Pool) Closed() bool {
	select {
	case <-p.quit:
		return true
	default:
		return false
	}
}

// LoadAll issues Load to every usable worker and waits for each to reach
// Ready or Error. Failed instances are returned with their error detail;
// workers that loaded are unaffected by the failures of others.
func (p *Pool) LoadAll() ([]LoadFailure, error) {
	if p.Closed() {
		return nil, ErrShutdown
	}
	workers := p.UsableWorkers()
	pending := make([]<-chan Completion, len(workers))
	var failures []LoadFailure
	for i, w := range workers {
		done, err := w.SetDemand(DemandLoad)
		if err != nil {
			failures = append(failures, LoadFailure{InstanceID: w.ID(), Detail: err.Error()})
			continue
		}
		pending[i] = done
	}
	for i, w := range workers {
		if pending[i] == nil {
			continue
		}
		c, err := w.Await(pending[i])
		if err != nil {
			failures = append(failures, LoadFailure{InstanceID: w.ID(), Detail: err.Error()})
			continue
		}
		if c.Err != nil {
			failures = append(failures, LoadFailure{InstanceID: w.ID(), Detail: w.LastError()})
		}
	}
	logrus.Infof("loaded %d/%d instances", len(workers)-len(failures), len(workers))
	return failures, nil
}

// QueryInfo asks the lowest-index ready worker for the engine's name,
// redline and displacement.
func (p *Pool) QueryInfo() (recorder.EngineInfo, error) {
	idle := p.Idle()
	if len(idle) == 0 {
		return recorder.EngineInfo{}, ErrNoReadyInstance
	}
	w := idle[0]
	done, err := w.SetDemand(DemandQueryInfo)
	if err != nil {
		return recorder.EngineInfo{}, err
	}
	c, err := w.Await(done)
	if err != nil {
		return recorder.EngineInfo{}, err
	}
	return c.Info, c.Err
}

// States describes every worker, used or not. The simulation state is
// queried from the service; a failed query leaves it Idle at 0%.
func (p *Pool) States(ctx context.Context) []InstanceView {
	usable := p.Usable()
	views := make([]InstanceView, len(p.workers))
	for i, w := range p.workers {
		phase := w.Phase()
		v := InstanceView{
			ID:     i,
			Phase:  phase,
			Status: phase.Status(),
			Usable: i < usable,
			Loaded: w.Loaded(),
		}
		if phase != PhaseShutdown {
			if state, progress, err := p.svc.State(ctx, i); err == nil {
				v.EngineState, v.Progress = state, progress
			} else {
				logrus.Debugf("instance %d: state query failed: %v", i, err)
			}
		}
		v.PhaseName = v.Phase.String()
		v.StatusName = v.Status.String()
		v.StateName = v.EngineState.String()
		views[i] = v
	}
	return views
}

// Shutdown stops every worker, used or not, and waits for all of them to
// exit. In-flight demands run to completion first. Idempotent.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		close(p.quit)
		for _, w := range p.workers {
			_, _ = w.SetDemand(DemandShutdown)
		}
		for _, w := range p.workers {
			<-w.Exited()
		}
		logrus.Infof("instance pool shut down")
	})
	// Callers racing the first Shutdown still wait for the exit.
	for _, w := range p.workers {
		<-w.Exited()
	}
}
