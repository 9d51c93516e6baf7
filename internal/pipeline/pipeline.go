// Package pipeline wires the full generation run: scan the project, parse
// each file, build the task graph, generate through the cache, write the
// output tree, then sweep stale cache entries.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/cache"
	"github.com/codescribe-dev/codescribe/internal/config"
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/orchestrator"
	"github.com/codescribe-dev/codescribe/internal/parser"
	"github.com/codescribe-dev/codescribe/internal/prompt"
	"github.com/codescribe-dev/codescribe/internal/scanner"
	"github.com/codescribe-dev/codescribe/internal/writer"
)

// Options tunes one run.
type Options struct {
	Force       bool // regenerate even on cache hits
	DryRun      bool // plan tasks, call nothing, write nothing
	Concurrency int  // override config when positive
	Progress    orchestrator.Progress
}

// RunResult summarizes a completed pipeline run.
type RunResult struct {
	Files     int
	Degraded  int // files parsed by the fallback parser
	Tasks     []docgraph.Task
	Report    *orchestrator.Report
	Written   int
	Unchanged int
	Swept     int
	Elapsed   time.Duration
}

// Pipeline is a reusable run driver bound to one project root.
type Pipeline struct {
	rootDir string
	cfg     *config.Config
	be      backend.Backend
}

// New creates a pipeline for rootDir.
func New(rootDir string, cfg *config.Config, be backend.Backend) *Pipeline {
	return &Pipeline{rootDir: rootDir, cfg: cfg, be: be}
}

// CacheDir returns the cache location inside the project's work directory.
func CacheDir(rootDir string) string {
	return filepath.Join(rootDir, scanner.WorkDir, "cache")
}

// Run executes one full generation pass.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*RunResult, error) {
	started := time.Now()

	trees, degraded, err := p.parseProject(ctx)
	if err != nil {
		return nil, err
	}

	_, tasks, err := docgraph.Build(trees, p.cfg.Stages())
	if err != nil {
		return nil, fmt.Errorf("failed to build task graph: %w", err)
	}

	result := &RunResult{Files: len(trees), Degraded: degraded, Tasks: tasks}
	if opts.DryRun {
		result.Elapsed = time.Since(started)
		return result, nil
	}

	store, err := cache.Open(CacheDir(p.rootDir))
	if err != nil {
		return nil, err
	}

	concurrency := p.cfg.Generation.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	orch := orchestrator.New(store, p.be, orchestrator.Options{
		Concurrency: concurrency,
		MaxRetries:  p.cfg.Generation.MaxRetries,
		CallTimeout: time.Duration(p.cfg.Backend.TimeoutSeconds) * time.Second,
		Force:       opts.Force,
		Prompts:     prompt.NewBuilder(p.cfg.Backend.MaxTokens),
		Progress:    opts.Progress,
	})

	report, err := orch.Run(ctx, tasks)
	if err != nil {
		return nil, err
	}
	result.Report = report

	w := writer.New(filepath.Join(p.rootDir, p.cfg.Output.Dir))
	summary, err := w.WriteReport(report)
	if err != nil {
		return nil, err
	}
	result.Written = summary.Written
	result.Unchanged = summary.Unchanged
	if err := w.WriteRunReport(report); err != nil {
		return nil, err
	}

	// Deleted units leave orphaned cache entries and edited units leave
	// superseded-hash entries; reclaim both now that the run is complete.
	live := make(map[string]string, len(tasks))
	for _, task := range tasks {
		live[task.UnitName] = task.ContentHash
	}
	swept, err := store.Sweep(live)
	if err != nil {
		log.Printf("Warning: cache sweep failed: %v\n", err)
	}
	result.Swept = swept

	result.Elapsed = time.Since(started)
	return result, nil
}

// parseProject scans and parses every matching file. Files that cannot be
// read are skipped with a warning; parse failures inside a file degrade to
// the fallback parser rather than surfacing here.
func (p *Pipeline) parseProject(ctx context.Context) ([]*parser.FileTree, int, error) {
	sc, err := scanner.New(p.rootDir, p.cfg.Project.Include, p.cfg.Project.Exclude)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid file patterns: %w", err)
	}
	paths, err := sc.Scan()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan project: %w", err)
	}

	parse := parser.New()
	var trees []*parser.FileTree
	degraded := 0
	for _, relPath := range paths {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		src, err := parser.ReadSource(p.rootDir, relPath)
		if err != nil {
			log.Printf("Warning: skipping unreadable file %s: %v\n", relPath, err)
			continue
		}
		tree, err := parse.Parse(ctx, src)
		if err != nil {
			log.Printf("Warning: skipping unparseable file %s: %v\n", relPath, err)
			continue
		}
		if tree.Fidelity == parser.FidelityDegraded {
			degraded++
		}
		trees = append(trees, tree)
	}
	return trees, degraded, nil
}
