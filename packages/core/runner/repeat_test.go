package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Repeat(t *testing.T) {
	ts := newMockServer(t)
	script := parse(t, `
steps:
  - name: data
    url: `+ts.URL+`/data
  - name: missing
    url: `+ts.URL+`/status/404
    expect:
      status: 200
`)

	result, err := NewRunner(nil).Repeat(context.Background(), script, 3, 0)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Runs)
	assert.Equal(t, 3, result.Failed)
	assert.False(t, result.Success())
	require.NotNil(t, result.Last)
	assert.Len(t, result.Last.Results, 2)

	summary := result.Summary
	assert.Equal(t, int64(6), summary.Total)
	assert.Equal(t, int64(3), summary.Failed)
	require.Len(t, summary.Steps, 2)
	assert.Equal(t, "data", summary.Steps[0].Name)
	assert.Equal(t, int64(3), summary.Steps[0].Total)
	assert.Equal(t, int64(0), summary.Steps[0].Failed)
	assert.Equal(t, int64(3), summary.Steps[1].Failed)
	assert.Greater(t, summary.P50, time.Duration(0))
	assert.LessOrEqual(t, summary.Min, summary.Max)
}

func TestRunner_RepeatIsPaced(t *testing.T) {
	ts := newMockServer(t)
	script := parse(t, "steps:\n  - url: "+ts.URL+"/data\n")

	start := time.Now()
	result, err := NewRunner(nil).Repeat(context.Background(), script, 3, 20)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Passed)
	// burst 1 at 20/s: the second and third runs wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunner_RepeatCanceled(t *testing.T) {
	ts := newMockServer(t)
	script := parse(t, "steps:\n  - url: "+ts.URL+"/data\n")

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	result, err := NewRunner(nil).Repeat(ctx, script, 100, 10)
	require.Error(t, err)
	assert.Less(t, result.Runs, 100)
	assert.NotNil(t, result.Summary)
}

func TestRunner_RepeatInvalidCount(t *testing.T) {
	_, err := NewRunner(nil).Repeat(context.Background(), parse(t, "steps:\n  - url: http://localhost/\n"), 0, 0)
	assert.Error(t, err)
}

func TestMetrics_IgnoresSkipped(t *testing.T) {
	m := NewMetrics()
	m.Record(&StepResult{Name: "a", Passed: true, Duration: 2 * time.Millisecond})
	m.Record(&StepResult{Name: "a", Passed: false, Duration: 4 * time.Millisecond})
	m.Record(&StepResult{Name: "b", Skipped: true})

	s := m.Summary()
	assert.Equal(t, int64(2), s.Total)
	assert.Equal(t, int64(1), s.Failed)
	require.Len(t, s.Steps, 1)
	assert.InDelta(t, float64(2*time.Millisecond), float64(s.Min), float64(10*time.Microsecond))
	assert.InDelta(t, float64(4*time.Millisecond), float64(s.Max), float64(10*time.Microsecond))
}

func TestMetrics_Empty(t *testing.T) {
	s := NewMetrics().Summary()
	assert.Zero(t, s.Total)
	assert.Zero(t, s.P99)
	assert.Empty(t, s.Steps)
}
