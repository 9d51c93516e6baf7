package docgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/codescribe-dev/codescribe/internal/parser"
)

// maxSnippetBytes caps the source text attached to a task's prompt context.
const maxSnippetBytes = 8192

// Build merges the per-file trees into the module hierarchy and returns the
// documentation tasks in dependency order: children before parents, ties
// broken by lexicographic task ID. The order is identical across runs for
// the same input.
func Build(trees []*parser.FileTree, stages StageSet) (*ModuleNode, []Task, error) {
	sorted := append([]*parser.FileTree{}, trees...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	root := buildHierarchy(sorted)

	tasks := make(map[string]*Task)
	collectTasks(root, stages, tasks)

	ordered, err := orderTasks(tasks)
	if err != nil {
		return nil, nil, err
	}
	return root, ordered, nil
}

// buildHierarchy groups file trees by directory into module nodes, creating
// intermediate nodes for every ancestor directory.
func buildHierarchy(trees []*parser.FileTree) *ModuleNode {
	nodes := map[string]*ModuleNode{
		RootModule: {Name: RootModule},
	}

	ensure := func(name string) *ModuleNode {
		if node, ok := nodes[name]; ok {
			return node
		}
		node := &ModuleNode{Name: name}
		nodes[name] = node
		return node
	}

	for _, tree := range trees {
		moduleName := parser.ModuleName(tree.Path)
		node := ensure(moduleName)
		node.Files = append(node.Files, tree)

		// Link the module and every ancestor directory up to the root.
		for moduleName != RootModule {
			parentName := path.Dir(moduleName)
			parent := ensure(parentName)
			if !containsChild(parent, nodes[moduleName]) {
				parent.Children = append(parent.Children, nodes[moduleName])
			}
			moduleName = parentName
		}
	}

	for _, node := range nodes {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].Name < node.Children[j].Name
		})
	}
	return nodes[RootModule]
}

func containsChild(parent, child *ModuleNode) bool {
	for _, c := range parent.Children {
		if c == child {
			return true
		}
	}
	return false
}

// collectTasks emits tasks for node's subtree and returns the IDs of the
// tasks a parent overview depends on (this module's overview, or its file
// unit tasks when module overviews are disabled).
func collectTasks(node *ModuleNode, stages StageSet, tasks map[string]*Task) []string {
	var childDeps []string
	for _, child := range node.Children {
		childDeps = append(childDeps, collectTasks(child, stages, tasks)...)
	}

	var unitDeps []string
	for _, tree := range node.Files {
		if !stages.APIDetail {
			continue
		}
		tree.Root.Walk(func(u *parser.Unit) {
			if u.Kind != parser.KindFunction && u.Kind != parser.KindType {
				return
			}
			task := &Task{
				ID:          TaskID(u.QualifiedName, StageAPIDetail),
				Stage:       StageAPIDetail,
				UnitName:    u.QualifiedName,
				DisplayName: u.Name,
				Kind:        u.Kind,
				Language:    tree.Language,
				Fidelity:    tree.Fidelity,
				Signature:   u.Signature,
				Snippet:     truncate(tree.SpanText(u), maxSnippetBytes),
				ContentHash: tree.SpanHash(u),
				FilePath:    tree.Path,
			}
			tasks[task.ID] = task
			unitDeps = append(unitDeps, task.ID)
		})
	}

	isRoot := node.Name == RootModule

	if !isRoot && stages.ModuleOverview {
		task := moduleTask(node, StageModuleOverview)
		task.DependsOn = dedupeSorted(append(unitDeps, childDeps...))
		tasks[task.ID] = task
		return []string{task.ID}
	}

	if isRoot && stages.ProjectOverview {
		task := moduleTask(node, StageProjectOverview)
		task.DependsOn = dedupeSorted(append(unitDeps, childDeps...))
		tasks[task.ID] = task
	}

	// No overview at this level: parents depend directly on what we emitted.
	return dedupeSorted(append(unitDeps, childDeps...))
}

// moduleTask builds the overview task for a module (or the project root).
// Its content hash covers every file in the subtree, so any change below
// invalidates the overview whose context embeds those summaries.
func moduleTask(node *ModuleNode, stage Stage) *Task {
	subtree := node.SubtreeFiles()
	files := make([]string, 0, len(subtree))
	hasher := sha256.New()
	language := ""
	fidelity := parser.FidelityFull
	for _, tree := range subtree {
		files = append(files, tree.Path)
		fmt.Fprintf(hasher, "%s\x00%s\x00", tree.Path, tree.ContentHash)
		if language == "" {
			language = tree.Language
		}
		if tree.Fidelity == parser.FidelityDegraded {
			fidelity = parser.FidelityDegraded
		}
	}

	displayName := path.Base(node.Name)
	if node.Name == RootModule {
		displayName = "project"
	}

	return &Task{
		ID:          TaskID(node.Name, stage),
		Stage:       stage,
		UnitName:    node.Name,
		DisplayName: displayName,
		Kind:        parser.KindModule,
		Language:    language,
		Fidelity:    fidelity,
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		Files:       files,
	}
}

// orderTasks computes the dependency-respecting order and wave depths.
func orderTasks(tasks map[string]*Task) ([]Task, error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := g.AddVertex(id); err != nil {
			return nil, fmt.Errorf("failed to add task %s: %w", id, err)
		}
	}
	for _, id := range ids {
		for _, dep := range tasks[id].DependsOn {
			if _, ok := tasks[dep]; !ok {
				continue
			}
			if err := g.AddEdge(dep, id); err != nil {
				return nil, fmt.Errorf("failed to add dependency %s -> %s: %w", dep, id, err)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		return nil, fmt.Errorf("failed to order tasks: %w", err)
	}

	result := make([]Task, 0, len(order))
	depths := make(map[string]int, len(order))
	for _, id := range order {
		task := tasks[id]
		depth := 0
		for _, dep := range task.DependsOn {
			if d, ok := depths[dep]; ok && d+1 > depth {
				depth = d + 1
			}
		}
		task.Depth = depth
		depths[id] = depth
		result = append(result, *task)
	}
	return result, nil
}

func dedupeSorted(ids []string) []string {
	sort.Strings(ids)
	out := ids[:0]
	var last string
	for _, id := range ids {
		if id != last || len(out) == 0 {
			out = append(out, id)
			last = id
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
