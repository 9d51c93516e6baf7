// Package orchestrator runs documentation tasks in dependency waves: all
// tasks at one depth finish before the next depth starts, so every task sees
// the final text of its dependencies. Within a wave, work runs on a bounded
// pool.
package orchestrator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/cache"
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/prompt"
)

// Status classifies how a task's text was obtained.
type Status string

const (
	StatusCached    Status = "cached"
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one task.
type Result struct {
	Task    docgraph.Task
	Status  Status
	Text    string
	Err     error
	Retries int
}

// Report summarizes one run.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  map[string]Result
}

// Count returns the number of results with the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Progress receives task completion events. Implementations must be safe for
// concurrent use.
type Progress interface {
	Start(total int)
	Advance(taskID string, status Status)
	Finish()
}

type noProgress struct{}

func (noProgress) Start(int)              {}
func (noProgress) Advance(string, Status) {}
func (noProgress) Finish()                {}

// Options configures a run.
type Options struct {
	Concurrency int           // max in-flight backend calls, default 4
	MaxRetries  int           // retries after the first attempt, transient failures only
	CallTimeout time.Duration // per-attempt deadline, default 120s
	BaseBackoff time.Duration // first retry delay, doubled per attempt, default 1s
	Force       bool          // bypass cache lookups; results are still stored
	Classifier  backend.Classifier
	Prompts     prompt.Builder
	Progress    Progress
}

func (o *Options) withDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 120 * time.Second
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.Classifier == nil {
		o.Classifier = backend.Classify
	}
	if o.Prompts == nil {
		o.Prompts = prompt.NewBuilder(0)
	}
	if o.Progress == nil {
		o.Progress = noProgress{}
	}
}

// Orchestrator drives tasks through the cache and the backend.
type Orchestrator struct {
	store *cache.Store
	be    backend.Backend
	opts  Options

	mu      sync.Mutex
	results map[string]Result
}

// New creates an orchestrator bound to one store and backend.
func New(store *cache.Store, be backend.Backend, opts Options) *Orchestrator {
	opts.withDefaults()
	return &Orchestrator{store: store, be: be, opts: opts}
}

// Run executes all tasks and returns the per-task report. Task failures are
// recorded in the report, not returned as errors; Run itself fails only when
// the context is canceled.
func (o *Orchestrator) Run(ctx context.Context, tasks []docgraph.Task) (*Report, error) {
	report := &Report{
		RunID:   uuid.New().String(),
		Started: time.Now().UTC(),
		Results: make(map[string]Result, len(tasks)),
	}
	o.results = report.Results

	o.opts.Progress.Start(len(tasks))
	defer o.opts.Progress.Finish()

	for _, wave := range waves(tasks) {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.opts.Concurrency)
		for _, task := range wave {
			g.Go(func() error {
				return o.runTask(gctx, task)
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}
	}

	report.Finished = time.Now().UTC()
	return report, nil
}

// waves groups tasks by depth, ascending. Task order within a wave follows
// the input order, which the builder already made deterministic.
func waves(tasks []docgraph.Task) [][]docgraph.Task {
	maxDepth := 0
	for _, t := range tasks {
		if t.Depth > maxDepth {
			maxDepth = t.Depth
		}
	}
	grouped := make([][]docgraph.Task, maxDepth+1)
	for _, t := range tasks {
		grouped[t.Depth] = append(grouped[t.Depth], t)
	}
	var out [][]docgraph.Task
	for _, wave := range grouped {
		if len(wave) > 0 {
			out = append(out, wave)
		}
	}
	return out
}

func (o *Orchestrator) runTask(ctx context.Context, task docgraph.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := cache.KeyFor(task, o.be.Model())

	if !o.opts.Force {
		if entry, ok := o.store.Lookup(key); ok {
			o.record(task, Result{Task: task, Status: StatusCached, Text: entry.Text})
			return nil
		}
	}

	req := o.opts.Prompts.Build(task, o.childContext(task))

	text, retries, err := o.generate(ctx, task, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.record(task, Result{Task: task, Status: StatusFailed, Err: err, Retries: retries})
		return nil
	}

	if err := o.store.Store(key, text); err != nil {
		// The text is still usable downstream this run; only persistence
		// failed.
		o.record(task, Result{Task: task, Status: StatusFailed, Text: text, Err: err, Retries: retries})
		return nil
	}
	o.record(task, Result{Task: task, Status: StatusGenerated, Text: text, Retries: retries})
	return nil
}

// generate calls the backend with per-attempt timeouts, retrying transient
// failures with exponential backoff and jitter. Permanent failures return
// immediately.
func (o *Orchestrator) generate(ctx context.Context, task docgraph.Task, req backend.Request) (string, int, error) {
	var lastErr error
	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, o.opts.BaseBackoff, attempt); err != nil {
				return "", attempt, err
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		text, err := o.be.Complete(callCtx, req)
		cancel()

		if err == nil {
			return text, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}
		if o.opts.Classifier(err) == backend.FailurePermanent {
			return "", attempt, fmt.Errorf("generation failed for %s: %w", task.ID, err)
		}
	}
	return "", o.opts.MaxRetries, fmt.Errorf("generation failed for %s after %d attempts: %w", task.ID, o.opts.MaxRetries+1, lastErr)
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// childContext resolves a task's dependencies into prompt context. A failed
// dependency becomes an explicit unavailability marker so the parent still
// generates.
func (o *Orchestrator) childContext(task docgraph.Task) []prompt.ChildSummary {
	if len(task.DependsOn) == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	children := make([]prompt.ChildSummary, 0, len(task.DependsOn))
	for _, dep := range task.DependsOn {
		res, ok := o.results[dep]
		if !ok || (res.Status == StatusFailed && res.Text == "") {
			children = append(children, prompt.ChildSummary{Name: dep})
			continue
		}
		children = append(children, prompt.ChildSummary{Name: res.Task.DisplayName, Text: res.Text, Available: true})
	}
	return children
}

func (o *Orchestrator) record(task docgraph.Task, res Result) {
	o.mu.Lock()
	o.results[task.ID] = res
	o.mu.Unlock()

	o.opts.Progress.Advance(task.ID, res.Status)
}
