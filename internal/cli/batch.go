package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/fileconv/internal/converter"
)

// result is the outcome of one submitted file.
type result struct {
	Input    string
	Output   string
	Status   converter.Status
	Err      error
	Duration time.Duration
}

// batch tracks a set of submissions until each has an outcome. Every
// submission ends in exactly one Finished or Error event. Not safe for
// concurrent use.
type batch struct {
	total   int
	running []string
	results []result
}

func newBatch(total int) *batch {
	return &batch{total: total}
}

// record applies e and reports whether it settled a submission.
func (b *batch) record(e converter.Event) bool {
	switch e.Kind {
	case converter.EventStarted:
		b.running = append(b.running, e.InputPath)
	case converter.EventFinished:
		b.running = slices.DeleteFunc(b.running, func(p string) bool { return p == e.InputPath })
		b.results = append(b.results, result{
			Input:    e.InputPath,
			Output:   e.OutputPath,
			Status:   e.Status,
			Err:      e.Err,
			Duration: e.Duration,
		})
		return true
	case converter.EventError:
		b.results = append(b.results, result{
			Input:  e.InputPath,
			Status: converter.StatusFailed,
			Err:    e.Err,
		})
		return true
	}
	return false
}

func (b *batch) complete() bool {
	return len(b.results) >= b.total
}

func (b *batch) percent() float64 {
	if b.total == 0 {
		return 1
	}
	return float64(len(b.results)) / float64(b.total)
}

func (b *batch) count(status converter.Status) int {
	n := 0
	for _, r := range b.results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// err summarizes failures. Cancelled conversions are not failures.
func (b *batch) err() error {
	failed := b.count(converter.StatusFailed) + b.count(converter.StatusUnsupported)
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d conversions failed", failed, b.total)
}

// summary renders one line per result followed by the totals.
func (b *batch) summary(t Theme) string {
	var sb strings.Builder
	for _, r := range b.results {
		sb.WriteString(formatResult(t, r))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(b.totals())
	sb.WriteByte('\n')
	return sb.String()
}

func (b *batch) totals() string {
	return fmt.Sprintf("%d succeeded, %d failed, %d cancelled",
		b.count(converter.StatusSucceeded),
		b.count(converter.StatusFailed)+b.count(converter.StatusUnsupported),
		b.count(converter.StatusCancelled))
}

func formatResult(t Theme, r result) string {
	name := filepath.Base(r.Input)
	switch r.Status {
	case converter.StatusSucceeded:
		return fmt.Sprintf("%s %s -> %s %s", t.completedStyle().Render("✓"), name,
			filepath.Base(r.Output), t.hintStyle().Render(r.Duration.Round(time.Millisecond).String()))
	case converter.StatusCancelled:
		return fmt.Sprintf("%s %s cancelled", t.hintStyle().Render("-"), name)
	case converter.StatusUnsupported:
		return fmt.Sprintf("%s %s: unsupported conversion", t.errorStyle().Render("✗"), name)
	default:
		return fmt.Sprintf("%s %s: %v", t.errorStyle().Render("✗"), name, r.Err)
	}
}

// plainSink prints one line per event, for pipes and --plain.
type plainSink struct {
	w     io.Writer
	theme Theme
	batch *batch
	done  chan struct{}
	once  sync.Once
}

func newPlainSink(w io.Writer, total int) *plainSink {
	return &plainSink{
		w:     w,
		theme: defaultTheme,
		batch: newBatch(total),
		done:  make(chan struct{}),
	}
}

// Emit implements converter.Sink.
func (s *plainSink) Emit(e converter.Event) {
	if !s.batch.record(e) {
		if e.Kind == converter.EventStarted {
			fmt.Fprintf(s.w, "%s %s\n", s.theme.statusStyle().Render("converting"), filepath.Base(e.InputPath))
		}
		return
	}
	fmt.Fprintln(s.w, formatResult(s.theme, s.batch.results[len(s.batch.results)-1]))
	if s.batch.complete() {
		s.once.Do(func() { close(s.done) })
	}
}
