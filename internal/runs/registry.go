// Package runs holds the reveal-server's in-memory run registry: one
// entry per ingest run, each owning its own realtime.Hub and, once
// ingest finishes cleanly, a reveal.Machine.
package runs

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"icpc-reveal-engine/internal/metrics"
	"icpc-reveal-engine/internal/orchestrator"
	"icpc-reveal-engine/internal/realtime"
	"icpc-reveal-engine/internal/reveal"
	"icpc-reveal-engine/internal/scoreboard"
	"icpc-reveal-engine/internal/store"
)

// Status is the lifecycle stage of one run.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// ErrNotFound is returned when a run id has no registry entry.
var ErrNotFound = fmt.Errorf("run: not found")

// ErrNotReady is returned when the reveal machine is requested before
// ingest has finished cleanly.
var ErrNotReady = fmt.Errorf("run: not ready for reveal")

// Run is one ingest/reveal lifecycle, identified by the id the registry
// minted for it in Start.
type Run struct {
	ID  string
	Hub *realtime.Hub

	mu         sync.Mutex
	status     Status
	errorCount uint64
	linesRead  uint64
	failReason string
	state      *store.ContestState
	result     *scoreboard.Result
	machine    *reveal.Machine
}

// Status reports the run's current lifecycle stage.
func (r *Run) Status() (Status, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, r.failReason
}

// Result returns the scoreboard compute (pre-freeze and finalized
// boards), if ingest finished cleanly; nil otherwise.
func (r *Run) Result() *scoreboard.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Machine lazily builds the reveal state machine from the pre-freeze
// board on first call, then returns the same instance on every
// subsequent call for this run.
func (r *Run) Machine() (*reveal.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusFinished || r.result == nil {
		return nil, ErrNotReady
	}
	if r.machine == nil {
		r.machine = reveal.New(r.result.PreFreeze.Rows, r.state.Problems, r.state.Awards, r.state.AwardOrder)
		metrics.NewRevealMetrics().MachineStarted()
	}
	return r.machine, nil
}

// Registry is a concurrency-safe map of run id to Run.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Start launches an ingest run against r in the background and pumps
// every orchestrator event onto the run's realtime hub. The returned
// Run is registered and visible to Get immediately, before ingest
// completes, so callers don't have to wait out the whole feed before
// they can open an SSE stream.
//
// The registry mints its own id up front rather than wait on
// orchestrator.Run's return value, since that value isn't available
// until the run has already finished.
func (reg *Registry) Start(ctx context.Context, r io.Reader, cfg func(*store.ContestState) error) *Run {
	id := uuid.NewString()
	run := &Run{ID: id, Hub: realtime.NewHub(), status: StatusRunning}

	reg.mu.Lock()
	reg.runs[id] = run
	reg.mu.Unlock()

	go run.Hub.Run(ctx)

	sink := make(chan orchestrator.Event, 256)
	go func() {
		go orchestrator.Run(ctx, r, cfg, sink)
		for ev := range drain(sink) {
			reg.pump(run, ev)
		}
	}()

	return run
}

// drain reads sink until orchestrator.Run's terminal event (Finished
// or Failed) is seen, then closes the returned channel so the pump
// loop above terminates instead of blocking on a sink nobody will
// close.
func drain(sink chan orchestrator.Event) <-chan orchestrator.Event {
	out := make(chan orchestrator.Event, cap(sink))
	go func() {
		defer close(out)
		for ev := range sink {
			out <- ev
			if ev.Kind == orchestrator.Finished || ev.Kind == orchestrator.Failed {
				return
			}
		}
	}()
	return out
}

func (reg *Registry) pump(run *Run, ev orchestrator.Event) {
	switch ev.Kind {
	case orchestrator.Started:
		run.Hub.Broadcast("started", nil)

	case orchestrator.Progress:
		run.mu.Lock()
		run.linesRead = ev.LinesRead
		run.mu.Unlock()
		run.Hub.Broadcast("progress", map[string]uint64{"lines_read": ev.LinesRead})

	case orchestrator.LineError:
		run.mu.Lock()
		run.errorCount++
		run.mu.Unlock()
		run.Hub.Broadcast("line_error", map[string]interface{}{"line_no": ev.LineNo, "message": ev.Message})

	case orchestrator.Finished:
		run.mu.Lock()
		run.status = StatusFinished
		run.linesRead = ev.LinesRead
		run.errorCount = ev.ErrorCount
		run.state = ev.State
		run.result = ev.Result
		run.mu.Unlock()
		run.Hub.Broadcast("finished", map[string]interface{}{
			"lines_read":  ev.LinesRead,
			"error_count": ev.ErrorCount,
			"warnings":    ev.Warnings,
		})

	case orchestrator.Failed:
		run.mu.Lock()
		run.status = StatusFailed
		run.failReason = ev.FailMessage
		run.mu.Unlock()
		run.Hub.Broadcast("failed", map[string]string{"message": ev.FailMessage})
	}
}

// Get looks up a run by id.
func (reg *Registry) Get(id string) (*Run, error) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	run, ok := reg.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return run, nil
}
