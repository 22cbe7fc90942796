package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"golang.org/x/time/rate"
)

// RepeatResult summarizes a script run several times.
type RepeatResult struct {
	Runs     int
	Passed   int
	Failed   int
	Duration time.Duration
	// Last is the final completed run, kept for detailed output.
	Last    *RunResult
	Summary *Summary
}

func (r *RepeatResult) Success() bool {
	return r.Failed == 0
}

// Repeat runs script count times. A positive perSecond paces run starts
// with a token bucket of burst 1. Cancelling ctx stops between runs and
// returns what was collected so far together with the context error.
func (r *Runner) Repeat(ctx context.Context, script *parser.Script, count int, perSecond float64) (*RepeatResult, error) {
	if count < 1 {
		return nil, fmt.Errorf("repeat count must be at least 1, got %d", count)
	}

	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	metrics := NewMetrics()
	result := &RepeatResult{}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		result.Summary = metrics.Summary()
	}()

	for i := 0; i < count; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, err
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		run, err := r.Run(ctx, script)
		if err != nil {
			return result, err
		}
		metrics.RecordRun(run)

		result.Runs++
		result.Last = run
		if run.Success() {
			result.Passed++
		} else {
			result.Failed++
		}
		r.logger.Debug().Int("run", i+1).Bool("passed", run.Success()).Dur("duration", run.Duration).Msg("run finished")
	}

	return result, nil
}
