// Package scheduler runs the two-phase bounded worker pool described
// in spec.md §5: phase one fans every plugin instance for a host out
// across J workers; phase two, started only once phase one for that
// host has fully drained, runs the per-host final merge. Grounded on
// the teacher's context.Context + sync.WaitGroup concurrency idiom
// (services/journal/journal.go's StartJournalService, executor/flows.go)
// generalized here into an explicit bounded pool since nothing in the
// pack ships a reusable one.
package scheduler

import (
	"context"
	"sync"

	"github.com/orc2timeline/orc2timeline/archive"
	"github.com/orc2timeline/orc2timeline/logging"
	"github.com/orc2timeline/orc2timeline/runtime"
)

// Pool bounds concurrency at J concurrent tasks and is reused across
// both phases so the number of tasks running at once never exceeds J
// regardless of how many hosts or instances are queued.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a Pool allowing up to j concurrent tasks. j <= 0 is
// treated as 1 (no parallelism, but still correct).
func NewPool(j int) *Pool {
	if j <= 0 {
		j = 1
	}
	return &Pool{sem: make(chan struct{}, j)}
}

// InstanceTask is one plugin instance queued to run under the pool.
type InstanceTask struct {
	Instance       archive.Instance
	Hostname       string
	HostScratchDir string
	ChunkSize      int
	FamilyLock     *sync.Mutex
}

// RunInstances runs every task in tasks, bounded by the pool's
// concurrency limit, and returns their Results in no particular order.
// A failing instance is recorded in its own Result and never cancels
// its peers (spec.md §5/§7: partial failure of one instance must not
// abort the host). ctx cancellation stops launching new tasks but
// lets already-running ones finish so their scratch directories are
// cleaned up consistently.
func (p *Pool) RunInstances(ctx context.Context, tasks []InstanceTask, log *logging.Logger) []runtime.Result {
	results := make([]runtime.Result, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			results[i] = runtime.Result{Instance: task.Instance, Err: err}
			continue
		}
		select {
		case <-ctx.Done():
			results[i] = runtime.Result{Instance: task.Instance, Err: ctx.Err()}
			continue
		case p.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, task InstanceTask) {
			defer wg.Done()
			defer func() { <-p.sem }()
			results[i] = runtime.Run(
				task.Instance, task.Hostname, task.HostScratchDir,
				task.ChunkSize, task.FamilyLock, log,
			)
		}(i, task)
	}

	wg.Wait()
	return results
}

// MergeTask is one per-host final merge queued to run under the pool,
// scheduled only after every InstanceTask for that host has completed
// (phase two never starts early for a given host).
type MergeTask struct {
	Hostname string
	Run      func() error
}

// MergeOutcome is the result of one host's final merge.
type MergeOutcome struct {
	Hostname string
	Err      error
}

// RunMerges runs every host's final-merge closure, bounded by the same
// pool concurrency limit used for phase one.
func (p *Pool) RunMerges(ctx context.Context, tasks []MergeTask) []MergeOutcome {
	outcomes := make([]MergeOutcome, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			outcomes[i] = MergeOutcome{Hostname: task.Hostname, Err: err}
			continue
		}
		select {
		case <-ctx.Done():
			outcomes[i] = MergeOutcome{Hostname: task.Hostname, Err: ctx.Err()}
			continue
		case p.sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, task MergeTask) {
			defer wg.Done()
			defer func() { <-p.sem }()
			outcomes[i] = MergeOutcome{Hostname: task.Hostname, Err: task.Run()}
		}(i, task)
	}

	wg.Wait()
	return outcomes
}
