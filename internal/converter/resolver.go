package converter

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/raphaelgruber/fileconv/internal/format"
)

// ResolverPolicy controls how long the converter waits for an output file
// after the tool exits successfully. Office tools in particular may still be
// flushing the file when the process ends.
type ResolverPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxRetries   int
}

// DefaultResolverPolicy probes after 50ms, then every 100ms, for about two seconds.
func DefaultResolverPolicy() ResolverPolicy {
	return ResolverPolicy{
		InitialDelay: 50 * time.Millisecond,
		Interval:     100 * time.Millisecond,
		MaxRetries:   20,
	}
}

func (p ResolverPolicy) withDefaults() ResolverPolicy {
	d := DefaultResolverPolicy()
	if p.InitialDelay <= 0 {
		p.InitialDelay = d.InitialDelay
	}
	if p.Interval <= 0 {
		p.Interval = d.Interval
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = d.MaxRetries
	}
	return p
}

// pendingCheck tracks the output probes of one exited job.
type pendingCheck struct {
	job     *Job
	retries int
	timer   *time.Timer
}

// resolve starts probing for job's output. Runs on the event loop.
func (c *Converter) resolve(job *Job) {
	pc := &pendingCheck{job: job}
	c.pending[job.InputPath] = pc
	c.scheduleProbe(pc, c.cfg.Resolver.InitialDelay)
}

func (c *Converter) scheduleProbe(pc *pendingCheck, d time.Duration) {
	pc.timer = time.AfterFunc(d, func() {
		c.post(func() { c.probe(pc) })
	})
}

func (c *Converter) probe(pc *pendingCheck) {
	job := pc.job
	if c.pending[job.InputPath] != pc {
		// Cancelled while the timer was in flight.
		return
	}

	if c.outputReady(job.OutputPath) {
		delete(c.pending, job.InputPath)
		c.succeed(job, job.OutputPath)
		c.finalize()
		return
	}

	pc.retries++
	if pc.retries < c.cfg.Resolver.MaxRetries {
		c.scheduleProbe(pc, c.cfg.Resolver.Interval)
		return
	}

	delete(c.pending, job.InputPath)
	if found, ok := c.scanOutputDir(job); ok {
		c.logger.Info("output found under a different name",
			"job_id", job.ID, "expected", job.OutputPath, "found", found)
		c.succeed(job, found)
	} else {
		c.fail(job, fmt.Errorf("%w: check that %s is installed correctly",
			ErrOutputNotProduced, toolName(job.tool())))
	}
	c.finalize()
}

func (c *Converter) outputReady(path string) bool {
	info, err := c.fs.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// scanOutputDir looks for the output under a name the tool chose itself:
// <base>.<ext> or <base>*.<ext>, newest first.
func (c *Converter) scanOutputDir(job *Job) (string, bool) {
	dir := filepath.Dir(job.OutputPath)
	base := format.BaseName(job.InputPath)
	ext := filepath.Ext(job.OutputPath)

	entries, err := c.fs.ReadDir(dir)
	if err != nil {
		c.logger.Warn("failed to scan output directory", "dir", dir, "error", err)
		return "", false
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var matches []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		if !strings.HasPrefix(stem, base) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		matches = append(matches, candidate{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}
	if len(matches) == 0 {
		return "", false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].modTime.After(matches[j].modTime)
	})
	return matches[0].path, true
}

// cancelPending stops probing for path. Returns false if no check is pending.
func (c *Converter) cancelPending(path string) bool {
	pc, ok := c.pending[path]
	if !ok {
		return false
	}
	if pc.timer != nil {
		pc.timer.Stop()
	}
	delete(c.pending, path)
	c.finish(pc.job, StatusCancelled, "", nil)
	return true
}
