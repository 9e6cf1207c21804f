package addonlib

import (
	"context"
	"sync"
	"time"

	"github.com/stkaddons/addonmgr/pkg/logger"
)

// Failure names one task that exhausted its retries, with enough
// context to retry it manually.
type Failure struct {
	ID     string
	Reason string
}

// Summary is the terminal outcome of a pool run. A non-zero Failed
// count is a valid terminal outcome, not a run failure.
type Summary struct {
	Succeeded int
	Failed    int
	// Incomplete counts tasks still pending or in-progress when the
	// run was interrupted. They are not failures; their part files
	// remain valid resume points.
	Incomplete  int
	Failures    []Failure
	Interrupted bool
}

// Pool executes download tasks with bounded parallelism. Planning has
// already run to completion by the time Run is called; the pool never
// reorders phases or creates tasks.
type Pool struct {
	// Concurrency bounds parallel tasks. Defaults to DefConcurrency.
	Concurrency int
	// DispatchDelay, when set, spaces out task dispatches as a crude
	// rate limit on the addon server.
	DispatchDelay time.Duration
	// Downloader fetches archives. Required.
	Downloader *Downloader
	// Installer finalizes verified archives. Required.
	Installer *Installer
	// Sink receives task lifecycle events. Defaults to NopSink.
	Sink ProgressSink
	// Logger defaults to the nop logger.
	Logger logger.Logger
}

// Run executes the tasks and blocks until every dispatched task has
// reached a terminal state or, after cancellation, finished its
// current write. Tasks never dispatched are left pending and counted
// incomplete. No two tasks for the same identifier ever run at once;
// the planner guarantees identifier uniqueness and Run re-checks it.
func (p *Pool) Run(ctx context.Context, tasks []*Task) Summary {
	conc := p.Concurrency
	if conc <= 0 {
		conc = DefConcurrency
	}
	sink := p.Sink
	if sink == nil {
		sink = NopSink{}
	}
	l := p.Logger
	if l == nil {
		l = logger.NewNopLogger()
	}

	runnable := p.guardDuplicates(tasks)

	queue := make(chan *Task)
	var wg sync.WaitGroup
	for i := 0; i < conc; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				p.runTask(ctx, t, sink, l)
			}
		}()
	}

dispatch:
	for _, t := range runnable {
		select {
		case queue <- t:
		case <-ctx.Done():
			break dispatch
		}
		if p.DispatchDelay > 0 {
			select {
			case <-time.After(p.DispatchDelay):
			case <-ctx.Done():
				break dispatch
			}
		}
	}
	close(queue)
	wg.Wait()

	return p.summarize(ctx, tasks)
}

// guardDuplicates fails every task after the first one per identifier.
// The planner already guarantees uniqueness, this keeps the per-ID
// exclusivity invariant even against a hand-built task list.
func (p *Pool) guardDuplicates(tasks []*Task) []*Task {
	seen := make(map[string]bool, len(tasks))
	runnable := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if seen[t.Entry.ID] {
			t.mu.Lock()
			t.status = StatusFailed
			t.err = ErrDuplicateTask
			t.mu.Unlock()
			continue
		}
		seen[t.Entry.ID] = true
		runnable = append(runnable, t)
	}
	return runnable
}

func (p *Pool) runTask(ctx context.Context, t *Task, sink ProgressSink, l logger.Logger) {
	if ctx.Err() != nil {
		// left pending, reported incomplete
		return
	}
	if !t.start() {
		return
	}
	id := t.Entry.ID
	sink.TaskStarted(id, t.Entry.Size)
	err := p.Downloader.Download(ctx, t)
	if err == nil {
		err = p.Installer.Install(t)
	}
	switch {
	case err == nil:
		t.succeed()
		sink.TaskDone(id, StatusSucceeded)
		l.Info("pool: installed %s revision %d", id, t.Entry.Revision)
	case ctx.Err() != nil:
		// interrupted, not failed; the part file stays behind
		l.Info("pool: %s interrupted, keeping partial download", id)
	default:
		t.fail(err)
		sink.TaskDone(id, StatusFailed)
		l.Error("pool: %s failed: %s", id, err.Error())
	}
}

func (p *Pool) summarize(ctx context.Context, tasks []*Task) Summary {
	s := Summary{Interrupted: ctx.Err() != nil}
	for _, t := range tasks {
		switch t.Status() {
		case StatusSucceeded:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{
				ID:     t.Entry.ID,
				Reason: t.Err().Error(),
			})
		default:
			s.Incomplete++
		}
	}
	return s
}
