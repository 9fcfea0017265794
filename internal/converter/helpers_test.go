package converter_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/fileconv/internal/converter"
	"github.com/raphaelgruber/fileconv/internal/locator"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// fastResolver keeps output probing short in tests.
var fastResolver = converter.ResolverPolicy{
	InitialDelay: time.Millisecond,
	Interval:     time.Millisecond,
	MaxRetries:   20,
}

// recorder is a Sink that keeps every event and lets tests wait for them.
type recorder struct {
	mu     sync.Mutex
	events []converter.Event
	ch     chan converter.Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan converter.Event, 256)}
}

func (r *recorder) Emit(e converter.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
}

// waitFor consumes events until one matches pred.
func (r *recorder) waitFor(t *testing.T, desc string, pred func(converter.Event) bool) converter.Event {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case e := <-r.ch:
			if pred(e) {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s; got %v", desc, r.snapshot())
		}
	}
}

func (r *recorder) waitAllFinished(t *testing.T) {
	t.Helper()
	r.waitFor(t, "all finished", func(e converter.Event) bool {
		return e.Kind == converter.EventAllFinished
	})
}

func (r *recorder) waitKind(t *testing.T, kind converter.EventKind, path string) converter.Event {
	t.Helper()
	return r.waitFor(t, string(kind)+" "+path, func(e converter.Event) bool {
		return e.Kind == kind && e.InputPath == path
	})
}

func (r *recorder) snapshot() []converter.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]converter.Event(nil), r.events...)
}

// ofKind filters recorded events, optionally by input path.
func (r *recorder) ofKind(kind converter.EventKind, path string) []converter.Event {
	var out []converter.Event
	for _, e := range r.snapshot() {
		if e.Kind == kind && (path == "" || e.InputPath == path) {
			out = append(out, e)
		}
	}
	return out
}

// fakeProcess exits when the test says so.
type fakeProcess struct {
	name string
	args []string

	exit     chan converter.ExitStatus
	killed   chan struct{}
	killOnce sync.Once
	// exitOnKill makes Kill deliver a signaled exit, like a real process.
	exitOnKill bool
}

func (p *fakeProcess) Wait() converter.ExitStatus {
	return <-p.exit
}

func (p *fakeProcess) Kill() error {
	p.killOnce.Do(func() {
		close(p.killed)
		if p.exitOnKill {
			select {
			case p.exit <- converter.ExitStatus{Code: -1, Signaled: true}:
			default:
			}
		}
	})
	return nil
}

// succeed writes the output file at path and exits cleanly.
func (p *fakeProcess) succeed(t *testing.T, path string) {
	t.Helper()
	if path != "" {
		writeFile(t, path, "converted")
	}
	p.exit <- converter.ExitStatus{Code: 0}
}

// fakeLauncher records starts and hands processes to the test.
type fakeLauncher struct {
	mu      sync.Mutex
	starts  []*fakeProcess
	running int
	maxSeen int

	startErr   error
	exitOnKill bool
	// onStart, when set, runs in its own goroutine for every process.
	onStart func(p *fakeProcess)
	started chan *fakeProcess
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{started: make(chan *fakeProcess, 64)}
}

func (l *fakeLauncher) Start(_ context.Context, name string, args []string) (converter.Process, error) {
	if l.startErr != nil {
		return nil, l.startErr
	}
	p := &fakeProcess{
		name:       name,
		args:       args,
		exit:       make(chan converter.ExitStatus, 1),
		killed:     make(chan struct{}),
		exitOnKill: l.exitOnKill,
	}

	l.mu.Lock()
	l.starts = append(l.starts, p)
	l.running++
	if l.running > l.maxSeen {
		l.maxSeen = l.running
	}
	l.mu.Unlock()

	l.started <- p
	if l.onStart != nil {
		go l.onStart(p)
	}
	return &countingProcess{fakeProcess: p, l: l}, nil
}

func (l *fakeLauncher) next(t *testing.T) *fakeProcess {
	t.Helper()
	select {
	case p := <-l.started:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a process to start")
		return nil
	}
}

func (l *fakeLauncher) startCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.starts)
}

func (l *fakeLauncher) maxRunning() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxSeen
}

// countingProcess decrements the launcher's running count on exit.
type countingProcess struct {
	*fakeProcess
	l *fakeLauncher
}

func (p *countingProcess) Wait() converter.ExitStatus {
	st := p.fakeProcess.Wait()
	p.l.mu.Lock()
	p.l.running--
	p.l.mu.Unlock()
	return st
}

// staticTools is a ToolLocator with fixed answers.
type staticTools map[locator.Tool]string

func (s staticTools) Locate(tool locator.Tool) (string, bool) {
	p, ok := s[tool]
	return p, ok
}

var allTools = staticTools{
	locator.Office:      "soffice",
	locator.ImageMagick: "magick",
}

// hidingFS reports path as missing for the first n Stat calls.
type hidingFS struct {
	converter.OSFileSystem
	mu    sync.Mutex
	path  string
	n     int
	stats int
}

func (f *hidingFS) Stat(name string) (fs.FileInfo, error) {
	if name == f.path {
		f.mu.Lock()
		f.stats++
		hide := f.stats <= f.n
		f.mu.Unlock()
		if hide {
			return nil, fs.ErrNotExist
		}
	}
	return f.OSFileSystem.Stat(name)
}

func (f *hidingFS) statCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newConverter(t *testing.T, cfg converter.Config, rec *recorder, l *fakeLauncher, opts ...converter.Option) *converter.Converter {
	t.Helper()
	if cfg.Resolver == (converter.ResolverPolicy{}) {
		cfg.Resolver = fastResolver
	}
	opts = append([]converter.Option{converter.WithLauncher(l)}, opts...)
	c := converter.New(cfg, rec, allTools, opts...)
	t.Cleanup(c.Close)
	return c
}

var errBoom = errors.New("exec: \"soffice\": executable file not found in $PATH")
