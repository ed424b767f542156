// Package scheduler runs stale compile invocations on a bounded worker pool
// and aborts dispatch once too many of them fail.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AndreyAkinshin/shimbuild/internal/compdb"
	"github.com/AndreyAkinshin/shimbuild/internal/errors"
	"github.com/AndreyAkinshin/shimbuild/internal/output"
	"github.com/AndreyAkinshin/shimbuild/internal/shim"
)

// Options configures a Scheduler.
type Options struct {
	Workers int
	// Threshold is the number of failures tolerated; one more aborts.
	Threshold      int
	Timeout        time.Duration
	NoisePrefixes  []string
	MaxOutputLines int
}

// Progress is the state shared by all workers. Every field is guarded by mu.
type Progress struct {
	mu            sync.Mutex
	completed     int
	failed        int
	interrupted   int
	failedOutputs []string
	aborted       bool
}

// Summary describes a finished compile phase.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	// FailedOutputs lists failed record outputs in completion order.
	FailedOutputs []string
	// Interrupted counts in-flight tasks cut short by cancellation. They are
	// neither completed nor failed.
	Interrupted int
	// NotDispatched counts records that never reached the shim because the
	// phase aborted first.
	NotDispatched int
	Aborted       bool
	Duration      time.Duration
}

// Succeeded returns the number of tasks that ran and exited 0.
func (s *Summary) Succeeded() int {
	return s.Completed - s.Failed
}

// Scheduler fans compile records out over a fixed-size worker pool.
type Scheduler struct {
	runner   shim.Runner
	resolver *compdb.Resolver
	opts     Options
	out      *output.Writer
}

// New creates a Scheduler. Workers below MinWorkers are raised to it.
func New(runner shim.Runner, resolver *compdb.Resolver, opts Options, out *output.Writer) *Scheduler {
	if opts.Workers < MinWorkers {
		opts.Workers = MinWorkers
	}
	return &Scheduler{runner: runner, resolver: resolver, opts: opts, out: out}
}

// CompileAll compiles every record and waits for all dispatched tasks to
// finish. Individual failures are recorded in the Summary; the returned
// error is non-nil only when the failure threshold was crossed or ctx was
// cancelled. In-flight tasks always run to completion or timeout.
func (s *Scheduler) CompileAll(ctx context.Context, records []compdb.Record) (*Summary, error) {
	start := time.Now()
	total := len(records)
	p := &Progress{}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i, rec := range records {
		if p.isAborted() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.runTask(ctx, p, i, rec, total)
			return nil
		})
	}
	_ = g.Wait()

	p.mu.Lock()
	sum := &Summary{
		Total:         total,
		Completed:     p.completed,
		Failed:        p.failed,
		FailedOutputs: append([]string(nil), p.failedOutputs...),
		Interrupted:   p.interrupted,
		NotDispatched: total - p.completed - p.interrupted,
		Aborted:       p.aborted,
		Duration:      time.Since(start),
	}
	p.mu.Unlock()

	s.printSummary(sum)

	if err := ctx.Err(); err != nil {
		return sum, errors.Wrap(err, "compilation interrupted")
	}
	if sum.Aborted {
		s.out.Errorln("Too many failures, stopping.")
		return sum, errors.Kindf(errors.KindThresholdAbort,
			"too many failures: %d compile tasks failed (threshold %d), %d not started",
			sum.Failed, s.opts.Threshold, sum.NotDispatched)
	}
	return sum, nil
}

func (p *Progress) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

// runTask compiles one record. The abort flag is checked only here, before
// the shim is called.
func (s *Scheduler) runTask(ctx context.Context, p *Progress, index int, rec compdb.Record, total int) {
	if p.isAborted() || ctx.Err() != nil {
		return
	}

	res, err := s.runner.Run(ctx, shim.Request{
		ID:      fmt.Sprintf("compile-%d", index),
		Dir:     s.resolver.Dir(rec),
		Command: rec.Command,
		Timeout: s.opts.Timeout,
	})

	failed, reason := classify(res, err)

	p.mu.Lock()
	defer p.mu.Unlock()
	if failed && ctx.Err() != nil {
		p.interrupted++
		return
	}
	p.completed++
	n := p.completed
	if !failed {
		s.out.TaskDone(n, total, rec.Output)
		return
	}
	p.failed++
	p.failedOutputs = append(p.failedOutputs, rec.Output)
	if p.failed > s.opts.Threshold {
		p.aborted = true
	}
	var diag string
	if res != nil {
		diag = shim.FilterNoise(res.Combined(), s.opts.NoisePrefixes, s.opts.MaxOutputLines)
	}
	s.out.TaskFailed(n, total, rec.Output, reason, diag)
}

// classify treats timeouts and launch errors exactly like a non-zero exit.
func classify(res *shim.Result, err error) (failed bool, reason string) {
	switch {
	case err != nil:
		return true, err.Error()
	case res == nil:
		return true, "no result"
	case !res.Success():
		return true, fmt.Sprintf("exit %d", res.ExitCode)
	default:
		return false, ""
	}
}

func (s *Scheduler) printSummary(sum *Summary) {
	s.out.Println("")
	s.out.Println("Compilation: %d/%d succeeded, %d failed", sum.Succeeded(), sum.Total, sum.Failed)
	if len(sum.FailedOutputs) > 0 {
		s.out.Println("Failed files:")
		s.out.List(sum.FailedOutputs)
	}
}
