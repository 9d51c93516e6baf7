package docgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescribe-dev/codescribe/internal/parser"
)

// Test Plan for Build:
// - Hierarchy groups files by directory with intermediate ancestors
// - Task order puts children strictly before their parents
// - Order is identical across repeated builds of the same input
// - Wave depths: units at 0, module overviews above their deepest dep,
//   project overview last
// - Module overview hash covers the subtree: a child file change changes it
// - Degraded fidelity in any file propagates to the module task
// - Disabled stages emit no tasks of that stage; parents then depend on
//   grandchildren directly

func fileTree(path string, units ...*parser.Unit) *parser.FileTree {
	content := []byte("source of " + path)
	root := &parser.Unit{
		Kind:          parser.KindModule,
		Name:          path,
		QualifiedName: path,
		EndByte:       len(content),
	}
	root.Children = units
	return &parser.FileTree{
		Path:        path,
		Language:    "python",
		Fidelity:    parser.FidelityFull,
		ContentHash: parser.HashBytes(content),
		Source:      content,
		Root:        root,
	}
}

func funcUnit(filePath, name string) *parser.Unit {
	return &parser.Unit{
		Kind:          parser.KindFunction,
		Name:          name,
		QualifiedName: parser.QualifyName(filePath, name),
	}
}

func sampleTrees() []*parser.FileTree {
	return []*parser.FileTree{
		fileTree("main.py", funcUnit("main.py", "main")),
		fileTree("pkg/queue/worker.py",
			funcUnit("pkg/queue/worker.py", "run"),
			funcUnit("pkg/queue/worker.py", "stop"),
		),
		fileTree("pkg/util.py", funcUnit("pkg/util.py", "helper")),
	}
}

func taskIndex(tasks []Task) map[string]int {
	idx := make(map[string]int, len(tasks))
	for i, task := range tasks {
		idx[task.ID] = i
	}
	return idx
}

func TestBuild_Hierarchy(t *testing.T) {
	t.Parallel()

	root, _, err := Build(sampleTrees(), AllStages())
	require.NoError(t, err)

	assert.Equal(t, RootModule, root.Name)
	assert.Len(t, root.Files, 1) // main.py
	require.Len(t, root.Children, 1)

	pkg := root.Children[0]
	assert.Equal(t, "pkg", pkg.Name)
	assert.Len(t, pkg.Files, 1) // pkg/util.py
	require.Len(t, pkg.Children, 1)
	assert.Equal(t, "pkg/queue", pkg.Children[0].Name)

	assert.Len(t, root.SubtreeFiles(), 3)
}

func TestBuild_ChildrenBeforeParents(t *testing.T) {
	t.Parallel()

	_, tasks, err := Build(sampleTrees(), AllStages())
	require.NoError(t, err)

	idx := taskIndex(tasks)
	for _, task := range tasks {
		for _, dep := range task.DependsOn {
			assert.Less(t, idx[dep], idx[task.ID], "%s must come after its dependency %s", task.ID, dep)
		}
	}

	// Project overview is last.
	assert.Equal(t, TaskID(RootModule, StageProjectOverview), tasks[len(tasks)-1].ID)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	_, first, err := Build(sampleTrees(), AllStages())
	require.NoError(t, err)
	_, second, err := Build(sampleTrees(), AllStages())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Depth, second[i].Depth)
	}
}

func TestBuild_WaveDepths(t *testing.T) {
	t.Parallel()

	_, tasks, err := Build(sampleTrees(), AllStages())
	require.NoError(t, err)

	depths := make(map[string]int)
	for _, task := range tasks {
		depths[task.ID] = task.Depth
	}

	assert.Equal(t, 0, depths[TaskID("pkg/queue/worker.py#run", StageAPIDetail)])
	assert.Equal(t, 0, depths[TaskID("main.py#main", StageAPIDetail)])
	assert.Equal(t, 1, depths[TaskID("pkg/queue", StageModuleOverview)])
	assert.Equal(t, 2, depths[TaskID("pkg", StageModuleOverview)])
	assert.Equal(t, 3, depths[TaskID(RootModule, StageProjectOverview)])
}

func TestBuild_ModuleHashCoversSubtree(t *testing.T) {
	t.Parallel()

	moduleHash := func(trees []*parser.FileTree, id string) string {
		_, tasks, err := Build(trees, AllStages())
		require.NoError(t, err)
		for _, task := range tasks {
			if task.ID == id {
				return task.ContentHash
			}
		}
		t.Fatalf("task %s not found", id)
		return ""
	}

	before := sampleTrees()
	after := sampleTrees()
	after[1].ContentHash = parser.HashBytes([]byte("edited worker"))

	pkgID := TaskID("pkg", StageModuleOverview)
	rootID := TaskID(RootModule, StageProjectOverview)

	// A change inside pkg/queue invalidates pkg's overview and the project
	// overview, whose contexts embed the summaries below them.
	assert.NotEqual(t, moduleHash(before, pkgID), moduleHash(after, pkgID))
	assert.NotEqual(t, moduleHash(before, rootID), moduleHash(after, rootID))
}

func TestBuild_DegradedFidelityPropagates(t *testing.T) {
	t.Parallel()

	trees := sampleTrees()
	trees[1].Fidelity = parser.FidelityDegraded

	_, tasks, err := Build(trees, AllStages())
	require.NoError(t, err)

	for _, task := range tasks {
		if task.ID == TaskID("pkg/queue", StageModuleOverview) {
			assert.Equal(t, parser.FidelityDegraded, task.Fidelity)
			return
		}
	}
	t.Fatal("pkg/queue overview task not found")
}

func TestBuild_DisabledStages(t *testing.T) {
	t.Parallel()

	_, tasks, err := Build(sampleTrees(), StageSet{APIDetail: true, ProjectOverview: true})
	require.NoError(t, err)

	var project *Task
	for i := range tasks {
		assert.NotEqual(t, StageModuleOverview, tasks[i].Stage)
		if tasks[i].Stage == StageProjectOverview {
			project = &tasks[i]
		}
	}
	require.NotNil(t, project)

	// Without module overviews the project overview depends on every unit
	// task directly.
	assert.Len(t, project.DependsOn, 4)
	assert.Equal(t, 1, project.Depth)
}
