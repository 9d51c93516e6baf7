// Package writer renders run results into the output tree. Paths are a pure
// function of unit name and stage, and files are only touched when their
// content actually changed, so repeated runs over unchanged sources leave
// the tree byte-identical.
package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/orchestrator"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// Writer owns one output directory.
type Writer struct {
	dir string
}

// New creates a writer rooted at dir.
func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// Summary reports what a write pass did.
type Summary struct {
	Written   int
	Unchanged int
	Skipped   int // failed tasks with no text
}

// WriteReport renders every successful result. Failed tasks are skipped; the
// run report records them.
func (w *Writer) WriteReport(report *orchestrator.Report) (*Summary, error) {
	summary := &Summary{}

	ids := make([]string, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := report.Results[id]
		if res.Text == "" {
			summary.Skipped++
			continue
		}
		changed, err := w.writeIfChanged(PagePath(res.Task.UnitName, res.Task.Stage), w.renderPage(res, report))
		if err != nil {
			return summary, err
		}
		if changed {
			summary.Written++
		} else {
			summary.Unchanged++
		}
	}
	return summary, nil
}

// PagePath maps a (unit, stage) pair to its output file, relative to the
// output directory. The mapping is total and injective: distinct units never
// collide.
func PagePath(unitName string, stage docgraph.Stage) string {
	switch stage {
	case docgraph.StageProjectOverview:
		return "index.md"
	case docgraph.StageModuleOverview:
		return filepath.Join("modules", slug(unitName)+".md")
	default:
		return filepath.Join("api", slug(unitName)+".md")
	}
}

// slug flattens a qualified name into a single path segment. Flattening
// alone is ambiguous when a name itself contains "-", so a short hash of
// the original name keeps distinct units on distinct files.
func slug(unitName string) string {
	if unitName == docgraph.RootModule {
		return "root"
	}
	flat := strings.NewReplacer("/", "--", "#", "---").Replace(unitName)
	sum := sha256.Sum256([]byte(unitName))
	return flat + "-" + hex.EncodeToString(sum[:4])
}

func (w *Writer) renderPage(res orchestrator.Result, report *orchestrator.Report) []byte {
	var page strings.Builder
	fmt.Fprintf(&page, "# %s\n\n", res.Task.DisplayName)
	if res.Task.FilePath != "" {
		fmt.Fprintf(&page, "> Source: `%s`\n\n", res.Task.FilePath)
	}
	page.WriteString(strings.TrimSpace(res.Text))
	page.WriteString("\n")
	w.writeCrossLinks(&page, res, report)
	return []byte(page.String())
}

// writeCrossLinks appends navigation links: detail pages link up to the
// overview of their owning module, overview pages link down to the pages
// their context was built from.
func (w *Writer) writeCrossLinks(page *strings.Builder, res orchestrator.Result, report *orchestrator.Report) {
	from := PagePath(res.Task.UnitName, res.Task.Stage)

	if res.Task.Stage == docgraph.StageAPIDetail {
		module := parser.ModuleName(res.Task.FilePath)
		ownerID := docgraph.TaskID(module, docgraph.StageModuleOverview)
		if module == docgraph.RootModule {
			ownerID = docgraph.TaskID(docgraph.RootModule, docgraph.StageProjectOverview)
		}
		owner, ok := report.Results[ownerID]
		if !ok || owner.Text == "" {
			return
		}
		target := relLink(from, PagePath(owner.Task.UnitName, owner.Task.Stage))
		fmt.Fprintf(page, "\n---\n\nModule: [%s](%s)\n", owner.Task.DisplayName, target)
		return
	}

	var links []string
	for _, dep := range res.Task.DependsOn {
		child, ok := report.Results[dep]
		if !ok || child.Text == "" {
			continue
		}
		target := relLink(from, PagePath(child.Task.UnitName, child.Task.Stage))
		links = append(links, fmt.Sprintf("- [%s](%s)", child.Task.DisplayName, target))
	}
	if len(links) == 0 {
		return
	}
	fmt.Fprintf(page, "\n---\n\n## Contents\n\n%s\n", strings.Join(links, "\n"))
}

// relLink builds a link from one generated page to another. Pages sit at
// most one directory below the output root, so climbing out of the source
// page's directory is enough.
func relLink(from, to string) string {
	up := strings.Repeat("../", strings.Count(filepath.ToSlash(from), "/"))
	return up + filepath.ToSlash(to)
}

// writeIfChanged writes content to relPath under the output directory,
// creating parents as needed. Returns false when the file already holds
// exactly this content.
func (w *Writer) writeIfChanged(relPath string, content []byte) (bool, error) {
	fullPath := filepath.Join(w.dir, relPath)

	if existing, err := os.ReadFile(fullPath); err == nil && string(existing) == string(content) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return false, fmt.Errorf("failed to create output directory: %w", err)
	}

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, content, 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return false, fmt.Errorf("failed to finalize %s: %w", relPath, err)
	}
	return true, nil
}

// runReport is the JSON shape persisted after each run.
type runReport struct {
	RunID    string          `json:"run_id"`
	Started  time.Time       `json:"started"`
	Finished time.Time       `json:"finished"`
	Counts   map[string]int  `json:"counts"`
	Failures []runFailure    `json:"failures,omitempty"`
	Tasks    []runTaskRecord `json:"tasks"`
}

type runFailure struct {
	TaskID  string `json:"task_id"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

type runTaskRecord struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
	Page   string `json:"page,omitempty"`
}

// WriteRunReport persists a machine-readable record of the run next to the
// generated pages.
func (w *Writer) WriteRunReport(report *orchestrator.Report) error {
	out := runReport{
		RunID:    report.RunID,
		Started:  report.Started,
		Finished: report.Finished,
		Counts: map[string]int{
			"cached":    report.Count(orchestrator.StatusCached),
			"generated": report.Count(orchestrator.StatusGenerated),
			"failed":    report.Count(orchestrator.StatusFailed),
		},
	}

	ids := make([]string, 0, len(report.Results))
	for id := range report.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := report.Results[id]
		record := runTaskRecord{TaskID: id, Status: string(res.Status)}
		if res.Text != "" {
			record.Page = PagePath(res.Task.UnitName, res.Task.Stage)
		}
		out.Tasks = append(out.Tasks, record)
		if res.Err != nil {
			out.Failures = append(out.Failures, runFailure{TaskID: id, Error: res.Err.Error(), Retries: res.Retries})
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}
	if _, err := w.writeIfChanged("run-report.json", append(data, '\n')); err != nil {
		return err
	}
	return nil
}
