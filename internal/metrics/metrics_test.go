package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raphaelgruber/fileconv/internal/converter"
	"github.com/raphaelgruber/fileconv/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// events is a small run: one success, one failure, one queued cancellation
// and one rejected submission.
var events = []converter.Event{
	{Kind: converter.EventStarted, JobID: "aaaa0001", InputPath: "a.png"},
	{Kind: converter.EventStarted, JobID: "aaaa0002", InputPath: "b.docx"},
	{Kind: converter.EventFinished, JobID: "aaaa0001", InputPath: "a.png", Status: converter.StatusSucceeded, Duration: 200 * time.Millisecond},
	{Kind: converter.EventFinished, JobID: "aaaa0002", InputPath: "b.docx", Status: converter.StatusFailed, Duration: 3 * time.Second},
	{Kind: converter.EventFinished, InputPath: "c.pdf", Status: converter.StatusCancelled},
	{Kind: converter.EventError, InputPath: "d.txt", Err: converter.ErrUnsupportedRoute},
	{Kind: converter.EventAllFinished},
}

func TestCollectorSnapshot(t *testing.T) {
	c := metrics.NewCollector()
	for _, e := range events {
		c.Emit(e)
	}

	snap := c.Snapshot()
	assert.Equal(t, int64(2), snap.Started)
	assert.Equal(t, int64(1), snap.Rejected)
	require.NotNil(t, snap.Succeeded)
	assert.Equal(t, int64(1), snap.Succeeded.Count)
	assert.InDelta(t, 200.0, snap.Succeeded.AvgTimeMs, 0.001)
	require.NotNil(t, snap.Failed)
	assert.Equal(t, int64(3000), snap.Failed.MaxTimeMs)
	assert.Nil(t, snap.Cancelled, "a queued cancellation has no timing")
	assert.Equal(t, int64(1), snap.Dropped)
	assert.Nil(t, snap.Unsupported)
	assert.Greater(t, snap.UptimeSeconds, 0.0)
}

func TestCollectorQueuedCancellationKeepsTimings(t *testing.T) {
	c := metrics.NewCollector()
	c.Emit(converter.Event{Kind: converter.EventFinished, JobID: "bbbb0001", InputPath: "a.docx",
		Status: converter.StatusCancelled, Duration: 800 * time.Millisecond})
	c.Emit(converter.Event{Kind: converter.EventFinished, InputPath: "b.docx", Status: converter.StatusCancelled})
	c.Emit(converter.Event{Kind: converter.EventFinished, InputPath: "c.docx", Status: converter.StatusCancelled})

	snap := c.Snapshot()
	require.NotNil(t, snap.Cancelled)
	assert.Equal(t, int64(1), snap.Cancelled.Count)
	assert.Equal(t, int64(800), snap.Cancelled.MinTimeMs)
	assert.InDelta(t, 800.0, snap.Cancelled.AvgTimeMs, 0.001)
	assert.Equal(t, int64(2), snap.Dropped)
}

func TestCollectorMinMax(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTiming(converter.StatusSucceeded, 300*time.Millisecond)
	c.RecordTiming(converter.StatusSucceeded, 100*time.Millisecond)
	c.RecordTiming(converter.StatusSucceeded, 200*time.Millisecond)

	snap := c.Snapshot().Succeeded
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.Count)
	assert.Equal(t, int64(100), snap.MinTimeMs)
	assert.Equal(t, int64(300), snap.MaxTimeMs)
	assert.Equal(t, int64(600), snap.TotalTimeMs)
	assert.InDelta(t, 200.0, snap.AvgTimeMs, 0.001)
}

func TestExporterCounts(t *testing.T) {
	e := metrics.NewExporter()
	for _, ev := range events {
		e.Emit(ev)
	}

	count, err := testutil.GatherAndCount(e.Registry(), "fileconv_conversions_finished_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per status")

	expected := `
# HELP fileconv_conversions_active Conversions currently running or awaiting output.
# TYPE fileconv_conversions_active gauge
fileconv_conversions_active 0
# HELP fileconv_conversions_started_total Conversions dispatched to an external tool.
# TYPE fileconv_conversions_started_total counter
fileconv_conversions_started_total 2
# HELP fileconv_submissions_rejected_total Submissions rejected before queuing.
# TYPE fileconv_submissions_rejected_total counter
fileconv_submissions_rejected_total{reason="unsupported"} 1
`
	err = testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"fileconv_conversions_active",
		"fileconv_conversions_started_total",
		"fileconv_submissions_rejected_total",
	)
	assert.NoError(t, err)
}

func TestExporterWriteTextfile(t *testing.T) {
	e := metrics.NewExporter()
	for _, ev := range events {
		e.Emit(ev)
	}

	path := filepath.Join(t.TempDir(), "fileconv.prom")
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `fileconv_conversions_finished_total{status="succeeded"} 1`)
	assert.Contains(t, string(data), `fileconv_conversion_duration_seconds_count{status="failed"} 1`)
}
