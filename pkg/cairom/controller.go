package cairom

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/cairo-m/cairom/internal/cairom/diag"
	"github.com/cairo-m/cairom/internal/cairom/querydb"
)

// DiagnosticsRequest asks the controller to recompute diagnostics for one
// module, grounded on
// original_source/crates/cairo-m-ls/src/diagnostics/controller.rs's
// DiagnosticsRequest, narrowed to the single FileChanged case (cairom has
// no project/workspace concept to mirror ProjectChanged).
type DiagnosticsRequest struct {
	ModuleID string
	Version  int64

	// RequestID correlates a request with its eventual response (and with
	// the log lines dispatch/run emit) across the worker pool, where
	// ordering between concurrently in-flight requests isn't otherwise
	// observable. Submit fills this in with a fresh uuid.New() when left
	// empty.
	RequestID string
}

// DiagnosticsResponse reports the result of one DiagnosticsRequest.
type DiagnosticsResponse struct {
	ModuleID    string
	Version     int64
	RequestID   string
	Diagnostics []diag.Diagnostic
}

// ComputeFunc computes the full, current diagnostic set for a module. It
// is called from a worker goroutine and must be safe for concurrent use
// across modules.
type ComputeFunc func(moduleID string) []diag.Diagnostic

// DiagnosticsController runs recomputation requests through a bounded
// worker pool, draining a single request channel the same way the
// original's controller drains a single mpsc receiver. Responses whose
// request version has since been superseded are suppressed, and results
// are filtered through a DeltaTracker so an unchanged diagnostic set
// never gets republished (spec §5).
type DiagnosticsController struct {
	compute   ComputeFunc
	requests  chan DiagnosticsRequest
	responses chan DiagnosticsResponse
	done      chan struct{}

	mu       sync.Mutex
	latest   map[string]int64
	delta    *querydb.DeltaTracker
	sem      chan struct{}
	wg       sync.WaitGroup
	shutdown atomic.Bool
}

// NewDiagnosticsController builds a controller with the given worker
// pool size and compute function, and starts its drain goroutine.
func NewDiagnosticsController(workers int, compute ComputeFunc) *DiagnosticsController {
	if workers < 1 {
		workers = 1
	}
	c := &DiagnosticsController{
		compute:   compute,
		requests:  make(chan DiagnosticsRequest, 64),
		responses: make(chan DiagnosticsResponse, 64),
		done:      make(chan struct{}),
		latest:    make(map[string]int64),
		delta:     querydb.NewDeltaTracker(),
		sem:       make(chan struct{}, workers),
	}
	go c.drain()
	return c
}

// Submit enqueues a recomputation request. It never blocks the caller on
// worker availability: dispatch is async, throttled only by the worker
// pool's semaphore.
func (c *DiagnosticsController) Submit(req DiagnosticsRequest) {
	if c.shutdown.Load() {
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	c.mu.Lock()
	c.latest[req.ModuleID] = req.Version
	c.mu.Unlock()
	log.WithField("module", req.ModuleID).WithField("request", req.RequestID).Debug("diagnostics request submitted")
	select {
	case c.requests <- req:
	case <-c.done:
	}
}

// Responses returns the channel DiagnosticsResponses are delivered on.
func (c *DiagnosticsController) Responses() <-chan DiagnosticsResponse {
	return c.responses
}

// Shutdown stops the drain goroutine and waits for in-flight workers to
// finish. Submit is a no-op after Shutdown returns.
func (c *DiagnosticsController) Shutdown() {
	if !c.shutdown.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.wg.Wait()
}

// drain is the controller's single reader of requests, dispatching each
// into the worker pool without itself doing any compute work.
func (c *DiagnosticsController) drain() {
	for {
		select {
		case req := <-c.requests:
			c.dispatch(req)
		case <-c.done:
			return
		}
	}
}

// dispatch runs one request on a worker goroutine, recovering from any
// panic in compute so one bad module can't take down the controller.
func (c *DiagnosticsController) dispatch(req DiagnosticsRequest) {
	select {
	case c.sem <- struct{}{}:
	case <-c.done:
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() { <-c.sem }()
		defer func() {
			if r := recover(); r != nil {
				// A compute panic degrades to "no diagnostics this round"
				// rather than taking the controller down; the next edit
				// will trigger a fresh request.
				log.WithField("module", req.ModuleID).WithField("request", req.RequestID).Errorf("compute panicked: %v", r)
			}
		}()
		c.run(req)
	}()
}

func (c *DiagnosticsController) run(req DiagnosticsRequest) {
	fresh := c.compute(req.ModuleID)

	c.mu.Lock()
	stale := c.latest[req.ModuleID] != req.Version
	c.mu.Unlock()
	if stale {
		return
	}

	changed, publish := c.delta.Update(req.ModuleID, fresh)
	if !publish {
		return
	}

	select {
	case c.responses <- DiagnosticsResponse{ModuleID: req.ModuleID, Version: req.Version, RequestID: req.RequestID, Diagnostics: changed}:
	case <-c.done:
	}
}
