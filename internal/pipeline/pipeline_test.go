package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/config"
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/orchestrator"
	"github.com/codescribe-dev/codescribe/internal/writer"
)

// Test Plan for pipeline:
// - A full run over a small project generates pages for units, modules,
//   and the project, and writes them under the output dir
// - A second unchanged run is served entirely from cache and rewrites
//   nothing
// - Editing one file regenerates only the affected tasks
// - Deleting a file sweeps its orphaned cache entries on the next run
// - Dry run plans tasks without backend calls or output
// - Force regenerates everything

func writeProject(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Project.Include = []string{"**/*.go"}
	cfg.Output.Dir = "docs"
	return cfg
}

const workerSource = `package queue

type Worker struct{}

func (w *Worker) Run() error { return nil }
`

const mainSource = `package main

func main() {}
`

func TestRun_FullProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{
		"main.go":             mainSource,
		"pkg/queue/worker.go": workerSource,
	})

	mock := backend.NewMock()
	result, err := New(root, testConfig(), mock).Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Files)
	assert.Zero(t, result.Degraded)
	// Units: main, Worker, Worker.Run; overviews: pkg, pkg/queue; project.
	assert.Equal(t, 6, len(result.Report.Results))
	assert.Equal(t, 6, result.Report.Count(orchestrator.StatusGenerated))
	assert.Equal(t, 6, result.Written)

	_, err = os.Stat(filepath.Join(root, "docs", "index.md"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "docs", writer.PagePath("pkg/queue", docgraph.StageModuleOverview)))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "docs", "run-report.json"))
	assert.NoError(t, err)
}

func TestRun_SecondRunFullyCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{
		"main.go":             mainSource,
		"pkg/queue/worker.go": workerSource,
	})
	cfg := testConfig()

	_, err := New(root, cfg, backend.NewMock()).Run(ctx, Options{})
	require.NoError(t, err)

	mock := backend.NewMock()
	result, err := New(root, cfg, mock).Run(ctx, Options{})
	require.NoError(t, err)

	assert.Zero(t, mock.Calls)
	assert.Equal(t, 6, result.Report.Count(orchestrator.StatusCached))
	assert.Zero(t, result.Written)
	assert.Equal(t, 6, result.Unchanged)
}

func TestRun_EditRegeneratesAffectedOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{
		"main.go":             mainSource,
		"pkg/queue/worker.go": workerSource,
	})
	cfg := testConfig()

	_, err := New(root, cfg, backend.NewMock()).Run(ctx, Options{})
	require.NoError(t, err)

	// Edit the worker's body. Its unit, both enclosing module overviews,
	// and the project overview become stale; main.go stays cached.
	writeProject(t, root, map[string]string{
		"pkg/queue/worker.go": `package queue

type Worker struct{}

func (w *Worker) Run() error { return errStopped }

var errStopped error
`,
	})

	mock := backend.NewMock()
	result, err := New(root, cfg, mock).Run(ctx, Options{})
	require.NoError(t, err)

	assert.Equal(t, orchestrator.StatusCached, result.Report.Results["main.go#main@api-detail"].Status)
	assert.Equal(t, orchestrator.StatusGenerated, result.Report.Results["pkg/queue/worker.go#Worker.Run@api-detail"].Status)
	assert.Equal(t, orchestrator.StatusGenerated, result.Report.Results["pkg/queue@module-overview"].Status)
	assert.Equal(t, orchestrator.StatusGenerated, result.Report.Results[".@project-overview"].Status)
}

func TestRun_DeletedFileSweepsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{
		"main.go":  mainSource,
		"extra.go": "package main\n\nfunc Helper() {}\n",
	})
	cfg := testConfig()

	_, err := New(root, cfg, backend.NewMock()).Run(ctx, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "extra.go")))

	result, err := New(root, cfg, backend.NewMock()).Run(ctx, Options{})
	require.NoError(t, err)

	// Helper's api-detail entry is orphaned and swept.
	assert.GreaterOrEqual(t, result.Swept, 1)
	_, ok := result.Report.Results["extra.go#Helper@api-detail"]
	assert.False(t, ok)
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{"main.go": mainSource})

	result, err := New(root, testConfig(), nil).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Tasks)
	assert.Nil(t, result.Report)
	_, err = os.Stat(filepath.Join(root, "docs"))
	assert.True(t, os.IsNotExist(err), "dry run must not create output")
}

func TestRun_Force(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	root := t.TempDir()
	writeProject(t, root, map[string]string{"main.go": mainSource})
	cfg := testConfig()

	_, err := New(root, cfg, backend.NewMock()).Run(ctx, Options{})
	require.NoError(t, err)

	mock := backend.NewMock()
	result, err := New(root, cfg, mock).Run(ctx, Options{Force: true})
	require.NoError(t, err)

	assert.Zero(t, result.Report.Count(orchestrator.StatusCached))
	assert.Equal(t, len(result.Report.Results), mock.Calls)
}
