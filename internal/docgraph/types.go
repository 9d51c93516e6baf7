// Package docgraph merges per-file structural trees into the project-wide
// module hierarchy and derives the ordered list of documentation tasks.
package docgraph

import (
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// Stage is one of the three granularities of generated documentation.
type Stage string

const (
	StageAPIDetail       Stage = "api-detail"
	StageModuleOverview  Stage = "module-overview"
	StageProjectOverview Stage = "project-overview"
)

// RootModule is the qualified name of the project root module.
const RootModule = "."

// StageSet selects which stages a run generates.
type StageSet struct {
	APIDetail       bool
	ModuleOverview  bool
	ProjectOverview bool
}

// AllStages enables every stage.
func AllStages() StageSet {
	return StageSet{APIDetail: true, ModuleOverview: true, ProjectOverview: true}
}

// ModuleNode is a node in the project hierarchy: a directory holding source
// files plus child modules. It is rebuilt fresh each run and has no
// persistent identity.
type ModuleNode struct {
	Name     string // slash-separated directory path, "." for the root
	Files    []*parser.FileTree
	Children []*ModuleNode
}

// SubtreeFiles returns all file trees in this module and its descendants.
func (m *ModuleNode) SubtreeFiles() []*parser.FileTree {
	files := append([]*parser.FileTree{}, m.Files...)
	for _, child := range m.Children {
		files = append(files, child.SubtreeFiles()...)
	}
	return files
}

// Task is one documentation unit bound to its generation stage. Tasks are
// transient: they exist only for the duration of one run.
type Task struct {
	ID          string // UnitName + "@" + Stage
	Stage       Stage
	UnitName    string // qualified unit name (file#Unit, directory, or ".")
	DisplayName string
	Kind        parser.UnitKind
	Language    string
	Fidelity    parser.Fidelity
	Signature   string
	Snippet     string // source span text (truncated), context for the backend
	ContentHash string // hash of the unit's own source span
	FilePath    string // owning file for api-detail tasks
	Files       []string

	// DependsOn lists task IDs whose generated text feeds this task's
	// prompt context. All dependencies are resolved before dispatch.
	DependsOn []string

	// Depth is the dependency wave index: 0 for tasks with no dependencies,
	// 1 + max(dependency depth) otherwise.
	Depth int
}

// TaskID builds the canonical ID for a (unit, stage) pair.
func TaskID(unitName string, stage Stage) string {
	return unitName + "@" + string(stage)
}
