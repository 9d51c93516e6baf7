package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/cache"
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// Test Plan for orchestrator:
// - First run generates everything; a second run over the same input is
//   all cache hits with zero backend calls
// - Changing one unit's content hash regenerates only that unit
// - Concurrency never exceeds the configured limit
// - Transient failures are retried with backoff until success
// - Permanent failures are recorded, not fatal, and don't burn retries
// - A parent whose child failed still generates, with an unavailability
//   marker in its context
// - Force bypasses cache reads but still stores results
// - Waves: a dependent task sees its dependency's generated text
// - Canceling the run stops admitting tasks; work that already finished
//   stays in the report and the cache, and a fresh run resumes from it

func apiTask(name, hash string) docgraph.Task {
	unit := name + ".py#" + name
	return docgraph.Task{
		ID:          docgraph.TaskID(unit, docgraph.StageAPIDetail),
		Stage:       docgraph.StageAPIDetail,
		UnitName:    unit,
		DisplayName: name,
		Kind:        parser.KindFunction,
		Language:    "python",
		Fidelity:    parser.FidelityFull,
		Snippet:     "def " + name + "(): pass",
		ContentHash: hash,
		FilePath:    name + ".py",
		Depth:       0,
	}
}

func overviewTask(deps ...docgraph.Task) docgraph.Task {
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.ID
	}
	return docgraph.Task{
		ID:          docgraph.TaskID("pkg", docgraph.StageModuleOverview),
		Stage:       docgraph.StageModuleOverview,
		UnitName:    "pkg",
		DisplayName: "pkg",
		Kind:        parser.KindModule,
		ContentHash: "pkg-hash",
		DependsOn:   ids,
		Depth:       1,
	}
}

func openStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	return store
}

func fastOpts() Options {
	return Options{Concurrency: 4, MaxRetries: 3, BaseBackoff: time.Millisecond}
}

func TestRun_GenerateThenCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, b := apiTask("alpha", "h1"), apiTask("beta", "h2")
	tasks := []docgraph.Task{a, b, overviewTask(a, b), {
		ID:          docgraph.TaskID(docgraph.RootModule, docgraph.StageProjectOverview),
		Stage:       docgraph.StageProjectOverview,
		UnitName:    docgraph.RootModule,
		DisplayName: "project",
		ContentHash: "root-hash",
		DependsOn:   []string{docgraph.TaskID("pkg", docgraph.StageModuleOverview)},
		Depth:       2,
	}}

	store := openStore(t)
	mock := backend.NewMock()

	report, err := New(store, mock, fastOpts()).Run(ctx, tasks)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(StatusGenerated))
	assert.Equal(t, 4, mock.Calls)
	assert.NotEmpty(t, report.RunID)

	// Second run: nothing changed, so every task is a hit and the backend
	// is never called.
	second := backend.NewMock()
	report, err = New(store, second, fastOpts()).Run(ctx, tasks)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Count(StatusCached))
	assert.Zero(t, second.Calls)
}

func TestRun_PartialInvalidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	a, b := apiTask("alpha", "h1"), apiTask("beta", "h2")
	store := openStore(t)

	_, err := New(store, backend.NewMock(), fastOpts()).Run(ctx, []docgraph.Task{a, b})
	require.NoError(t, err)

	// alpha's source changed; beta did not.
	a.ContentHash = "h1-edited"
	mock := backend.NewMock()
	report, err := New(store, mock, fastOpts()).Run(ctx, []docgraph.Task{a, b})
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Calls)
	assert.Equal(t, StatusGenerated, report.Results[a.ID].Status)
	assert.Equal(t, StatusCached, report.Results[b.ID].Status)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var tasks []docgraph.Task
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for i, n := range names {
		tasks = append(tasks, apiTask(n, names[i]+"-hash"))
	}

	mock := backend.NewMock()
	mock.Delay = 20 * time.Millisecond

	opts := fastOpts()
	opts.Concurrency = 2
	_, err := New(openStore(t), mock, opts).Run(ctx, tasks)
	require.NoError(t, err)

	assert.Equal(t, 8, mock.Calls)
	assert.LessOrEqual(t, mock.MaxInFlight, 2)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	task := apiTask("flaky", "h1")
	mock := backend.NewMock()
	mock.FailAttempts["flaky"] = 2

	report, err := New(openStore(t), mock, fastOpts()).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)

	res := report.Results[task.ID]
	assert.Equal(t, StatusGenerated, res.Status)
	assert.Equal(t, 2, res.Retries)
	assert.Equal(t, 3, mock.Calls)
}

func TestRun_ExhaustedRetriesFail(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	task := apiTask("flaky", "h1")
	mock := backend.NewMock()
	mock.FailAttempts["flaky"] = 10

	opts := fastOpts()
	opts.MaxRetries = 2
	report, err := New(openStore(t), mock, opts).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)

	res := report.Results[task.ID]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, 3, mock.Calls) // first attempt + 2 retries
}

func TestRun_PermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	task := apiTask("poison", "h1")
	mock := backend.NewMock()
	mock.FailFor["poison"] = &backend.Error{Kind: backend.FailurePermanent, Status: 400, Message: "rejected"}

	report, err := New(openStore(t), mock, fastOpts()).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Results[task.ID].Status)
	assert.Equal(t, 1, mock.Calls)
}

func TestRun_FailedChildMarksParentContext(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	good, bad := apiTask("good", "h1"), apiTask("bad", "h2")
	parent := overviewTask(good, bad)

	mock := backend.NewMock()
	// Match on the snippet so the parent's own context (which names the
	// failed child) doesn't trip the same failure.
	mock.FailFor["def bad()"] = &backend.Error{Kind: backend.FailurePermanent, Status: 400, Message: "rejected"}

	report, err := New(openStore(t), mock, fastOpts()).Run(ctx, []docgraph.Task{good, bad, parent})
	require.NoError(t, err)

	// The parent still generates despite the failed child.
	assert.Equal(t, StatusGenerated, report.Results[parent.ID].Status)
	assert.Equal(t, StatusFailed, report.Results[bad.ID].Status)

	found := false
	for _, req := range mock.Requests {
		if strings.Contains(req.Context, "[child documentation unavailable:") {
			found = true
			assert.Contains(t, req.Context, "good", "successful child text should be embedded")
		}
	}
	assert.True(t, found, "parent context should carry the unavailability marker")
}

func TestRun_ForceBypassesCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	task := apiTask("alpha", "h1")
	store := openStore(t)

	_, err := New(store, backend.NewMock(), fastOpts()).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)

	mock := backend.NewMock()
	opts := fastOpts()
	opts.Force = true
	report, err := New(store, mock, opts).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)

	assert.Equal(t, StatusGenerated, report.Results[task.ID].Status)
	assert.Equal(t, 1, mock.Calls)

	// The forced result was stored: a normal run afterwards is a hit.
	after := backend.NewMock()
	report, err = New(store, after, fastOpts()).Run(ctx, []docgraph.Task{task})
	require.NoError(t, err)
	assert.Equal(t, StatusCached, report.Results[task.ID].Status)
	assert.Zero(t, after.Calls)
}

func TestRun_CancellationStopsAdmission(t *testing.T) {
	t.Parallel()

	tasks := []docgraph.Task{apiTask("first", "h1"), apiTask("second", "h2"), apiTask("third", "h3")}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(t)
	mock := backend.NewMock()
	mock.Delay = 10 * time.Millisecond
	mock.Response = func(backend.Request) string {
		cancel()
		return "FIRST-TEXT"
	}

	opts := fastOpts()
	opts.Concurrency = 1
	report, err := New(store, mock, opts).Run(ctx, tasks)
	require.ErrorIs(t, err, context.Canceled)

	// The task that finished before cancellation is reported and persisted;
	// the rest were never admitted.
	require.Len(t, report.Results, 1)
	assert.Equal(t, StatusGenerated, report.Results[tasks[0].ID].Status)
	entry, ok := store.Lookup(cache.KeyFor(tasks[0], mock.Model()))
	require.True(t, ok)
	assert.Equal(t, "FIRST-TEXT", entry.Text)

	// A fresh run picks up where the canceled one left off.
	resume := backend.NewMock()
	report, err = New(store, resume, fastOpts()).Run(context.Background(), tasks)
	require.NoError(t, err)
	assert.Equal(t, StatusCached, report.Results[tasks[0].ID].Status)
	assert.Equal(t, 2, resume.Calls)
}

func TestRun_DependencyTextFlowsToParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	child := apiTask("alpha", "h1")
	parent := overviewTask(child)

	mock := backend.NewMock()
	mock.Response = func(req backend.Request) string {
		if strings.Contains(req.Context, "def alpha") {
			return "ALPHA-SUMMARY"
		}
		return "OVERVIEW"
	}

	report, err := New(openStore(t), mock, fastOpts()).Run(ctx, []docgraph.Task{child, parent})
	require.NoError(t, err)
	assert.Equal(t, StatusGenerated, report.Results[parent.ID].Status)

	found := false
	for _, req := range mock.Requests {
		if strings.Contains(req.Context, "ALPHA-SUMMARY") {
			found = true
		}
	}
	assert.True(t, found, "parent context should embed the child's generated text")
}
