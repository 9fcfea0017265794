// Package converter runs document and image conversions through external
// tools with bounded parallelism.
//
// All state lives on a single event loop goroutine. Submit, Cancel and
// CancelAll enqueue commands onto that loop and return immediately; process
// exits and output-probe timers are delivered to the same loop, so the queue
// and job tables never need locking.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raphaelgruber/fileconv/internal/format"
	"github.com/raphaelgruber/fileconv/internal/locator"
)

// ToolLocator resolves tool executables. *locator.Locator implements it.
type ToolLocator interface {
	Locate(tool locator.Tool) (string, bool)
}

// Config holds converter settings.
type Config struct {
	// OutputDir receives converted files. Empty means next to the input.
	OutputDir string

	// MaxParallel bounds the number of tool processes running at once.
	// Defaults to 1: soffice is not safe with concurrent headless instances
	// sharing a user profile.
	MaxParallel int

	// IsolateProfile gives every office invocation its own temporary profile,
	// which makes MaxParallel > 1 safe for document routes.
	IsolateProfile bool

	// Resolver controls output-file probing after a tool exits.
	Resolver ResolverPolicy
}

// WithDefaults fills in default values for unset fields.
func (c *Config) WithDefaults() {
	if c.MaxParallel < 1 {
		c.MaxParallel = 1
	}
	c.Resolver = c.Resolver.withDefaults()
}

// Option configures optional converter collaborators.
type Option func(*Converter)

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option {
	return func(c *Converter) { c.launcher = l }
}

// WithFileSystem replaces the filesystem used for existence checks and scans.
func WithFileSystem(fs FileSystem) Option {
	return func(c *Converter) { c.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// Converter queues conversion requests and drives tool processes.
type Converter struct {
	cfg      Config
	sink     Sink
	tools    ToolLocator
	launcher Launcher
	fs       FileSystem
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	ops  []func()
	wake chan struct{}

	activeCount atomic.Int32
	busy        atomic.Bool

	// Loop-owned state.
	queue   []Request
	active  map[string]*Job
	pending map[string]*pendingCheck
}

// New creates a Converter and starts its event loop. Events are delivered
// to sink; a nil sink discards them.
func New(cfg Config, sink Sink, tools ToolLocator, opts ...Option) *Converter {
	cfg.WithDefaults()
	if sink == nil {
		sink = discardSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Converter{
		cfg:      cfg,
		sink:     sink,
		tools:    tools,
		launcher: ExecLauncher{},
		fs:       OSFileSystem{},
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
		active:   make(map[string]*Job),
		pending:  make(map[string]*pendingCheck),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// Submit queues inputPath for conversion to target. Rejections are reported
// as Error events.
func (c *Converter) Submit(inputPath string, target format.Format) {
	c.post(func() { c.submit(Request{InputPath: inputPath, Target: target}) })
}

// Cancel stops the conversion of inputPath, whether queued, running or
// awaiting its output.
func (c *Converter) Cancel(inputPath string) {
	c.post(func() { c.cancelOne(inputPath) })
}

// CancelAll cancels every queued and running conversion.
func (c *Converter) CancelAll() {
	c.post(c.cancelAll)
}

// IsConverting reports whether any request is queued, running or awaiting
// output, as of the last command the event loop processed.
func (c *Converter) IsConverting() bool {
	return c.busy.Load()
}

// ActiveCount returns the number of running tool processes, as of the last
// command the event loop processed.
func (c *Converter) ActiveCount() int {
	return int(c.activeCount.Load())
}

// Close cancels all conversions and stops the event loop. It waits for the
// loop to exit, so it must not be called from a Sink; a sink that wants to
// stop work should call CancelAll.
func (c *Converter) Close() {
	c.post(c.cancelAll)
	c.post(c.cancel)
	<-c.done
}

// post enqueues op onto the event loop. The mailbox is unbounded so sinks
// may call back into the Converter without deadlocking.
func (c *Converter) post(op func()) {
	c.mu.Lock()
	c.ops = append(c.ops, op)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Converter) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for {
			c.mu.Lock()
			ops := c.ops
			c.ops = nil
			c.mu.Unlock()
			if len(ops) == 0 {
				break
			}
			for _, op := range ops {
				op()
				if c.ctx.Err() != nil {
					return
				}
			}
			c.refreshCounters()
		}
	}
}

func (c *Converter) refreshCounters() {
	c.activeCount.Store(int32(len(c.active)))
	c.busy.Store(!c.idle())
}

func (c *Converter) idle() bool {
	return len(c.queue) == 0 && len(c.active) == 0 && len(c.pending) == 0
}

func (c *Converter) submit(req Request) {
	if _, err := c.fs.Stat(req.InputPath); err != nil {
		c.reject(req.InputPath, ErrInputMissing)
		return
	}
	if format.Detect(req.InputPath) == format.Unknown {
		c.reject(req.InputPath, ErrUnsupportedRoute)
		return
	}
	if c.tracked(req.InputPath) {
		c.reject(req.InputPath, ErrAlreadyInProgress)
		return
	}

	c.queue = append(c.queue, req)
	c.logger.Debug("conversion queued", "input", req.InputPath, "target", req.Target, "queued", len(c.queue))
	c.finalize()
}

func (c *Converter) tracked(path string) bool {
	if _, ok := c.active[path]; ok {
		return true
	}
	if _, ok := c.pending[path]; ok {
		return true
	}
	for _, r := range c.queue {
		if r.InputPath == path {
			return true
		}
	}
	return false
}

func (c *Converter) reject(path string, err error) {
	c.logger.Warn("conversion rejected", "input", path, "error", err)
	c.sink.Emit(Event{Kind: EventError, InputPath: path, Err: err, Time: time.Now()})
}

// dispatch starts queued requests while there is capacity.
func (c *Converter) dispatch() {
	for len(c.active) < c.cfg.MaxParallel && len(c.queue) > 0 {
		req := c.queue[0]
		c.queue = c.queue[1:]
		c.start(newJob(req, c.cfg.OutputDir))
	}
}

// finalize pulls queued work into free capacity and announces when
// everything has drained.
func (c *Converter) finalize() {
	c.dispatch()
	if c.idle() {
		c.logger.Info("all conversions finished")
		c.sink.Emit(Event{Kind: EventAllFinished, Time: time.Now()})
	}
}

func (c *Converter) start(job *Job) {
	c.sink.Emit(Event{
		Kind:       EventStarted,
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		Status:     StatusRunning,
		Time:       job.StartedAt,
	})

	if job.Route == format.RouteUnsupported {
		c.finish(job, StatusUnsupported, "", fmt.Errorf("%w: %s to %s", ErrUnsupportedRoute, job.Source, job.Target))
		return
	}

	tool := job.tool()
	toolPath, ok := c.tools.Locate(tool)
	if !ok {
		c.fail(job, fmt.Errorf("%w: %s not found, please install %s", ErrToolNotFound, toolName(tool), toolName(tool)))
		return
	}

	if c.cfg.IsolateProfile && tool == locator.Office {
		if err := job.prepareProfile(); err != nil {
			c.fail(job, fmt.Errorf("%w: %v", ErrProcessLaunchFailed, err))
			return
		}
	}

	args := job.args()
	c.logger.Info("conversion started",
		"job_id", job.ID,
		"input", job.InputPath,
		"output", job.OutputPath,
		"tool", toolPath,
	)
	c.logger.Debug("executing tool", "job_id", job.ID, "path", toolPath, "args", args)

	proc, err := c.launcher.Start(c.ctx, toolPath, args)
	if err != nil {
		job.removeProfile()
		c.fail(job, fmt.Errorf("%w: %v", ErrProcessLaunchFailed, err))
		return
	}
	job.process = proc
	c.active[job.InputPath] = job

	go func() {
		st := proc.Wait()
		c.post(func() { c.handleExit(job, st) })
	}()
}

func (c *Converter) handleExit(job *Job, st ExitStatus) {
	if c.active[job.InputPath] != job {
		return
	}
	delete(c.active, job.InputPath)
	job.removeProfile()

	switch {
	case job.cancelled:
		c.finish(job, StatusCancelled, "", nil)
	case st.Signaled:
		c.fail(job, fmt.Errorf("%w: %s", ErrProcessCrashed, toolName(job.tool())))
	case st.Code == 0:
		c.logger.Debug("tool exited, waiting for output", "job_id", job.ID, "output", job.OutputPath)
		c.resolve(job)
		return
	default:
		output := st.Stderr
		if output == "" {
			output = st.Stdout
		}
		c.fail(job, &ExitError{Code: st.Code, Output: output})
	}
	c.finalize()
}

func (c *Converter) cancelOne(path string) {
	for i, r := range c.queue {
		if r.InputPath == path {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			c.emitCancelledRequest(r)
			c.finalize()
			return
		}
	}

	if job, ok := c.active[path]; ok {
		c.kill(job)
		return
	}

	if c.cancelPending(path) {
		c.finalize()
	}
}

func (c *Converter) cancelAll() {
	queued := c.queue
	c.queue = nil
	for _, r := range queued {
		c.emitCancelledRequest(r)
	}

	for _, job := range c.active {
		c.kill(job)
	}

	cancelledPending := false
	for path := range c.pending {
		if c.cancelPending(path) {
			cancelledPending = true
		}
	}

	// Running jobs finalize from their exit handlers.
	if len(c.active) == 0 && (len(queued) > 0 || cancelledPending) {
		c.finalize()
	}
}

func (c *Converter) kill(job *Job) {
	if job.cancelled {
		return
	}
	job.cancelled = true
	c.logger.Info("cancelling conversion", "job_id", job.ID, "input", job.InputPath)
	if err := job.process.Kill(); err != nil {
		c.logger.Warn("failed to kill tool process", "job_id", job.ID, "error", err)
	}
}

func (c *Converter) emitCancelledRequest(r Request) {
	c.logger.Info("queued conversion cancelled", "input", r.InputPath)
	c.sink.Emit(Event{
		Kind:      EventFinished,
		InputPath: r.InputPath,
		Status:    StatusCancelled,
		Time:      time.Now(),
	})
}

func (c *Converter) succeed(job *Job, outputPath string) {
	c.finish(job, StatusSucceeded, outputPath, nil)
}

func (c *Converter) fail(job *Job, err error) {
	c.finish(job, StatusFailed, "", err)
}

// finish emits the terminal event of a dispatched job.
func (c *Converter) finish(job *Job, status Status, outputPath string, err error) {
	elapsed := time.Since(job.StartedAt)
	attrs := []any{"job_id", job.ID, "input", job.InputPath, "status", status, "duration", elapsed.Round(time.Millisecond)}
	switch {
	case err != nil && status == StatusFailed:
		c.logger.Error("conversion failed", append(attrs, "error", err)...)
	case outputPath != "":
		c.logger.Info("conversion finished", append(attrs, "output", outputPath)...)
	default:
		c.logger.Info("conversion finished", attrs...)
	}

	c.sink.Emit(Event{
		Kind:       EventFinished,
		JobID:      job.ID,
		InputPath:  job.InputPath,
		OutputPath: outputPath,
		Status:     status,
		Err:        err,
		Duration:   elapsed,
		Time:       time.Now(),
	})
}
