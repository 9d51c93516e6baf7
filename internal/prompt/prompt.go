// Package prompt builds stage-specific generation requests: per-unit API
// detail, per-module overviews embedding child summaries, and the
// whole-project overview.
package prompt

import (
	"fmt"
	"strings"

	"github.com/codescribe-dev/codescribe/internal/backend"
	"github.com/codescribe-dev/codescribe/internal/docgraph"
	"github.com/codescribe-dev/codescribe/internal/parser"
)

// ChildSummary is the already-generated text of one dependency, or an
// explicit unavailability marker when that dependency failed.
type ChildSummary struct {
	Name      string
	Text      string
	Available bool
}

// Builder converts a task plus its resolved child context into a backend
// request.
type Builder interface {
	Build(task docgraph.Task, children []ChildSummary) backend.Request
}

type builder struct {
	maxTokens int
}

// NewBuilder creates the default prompt builder.
func NewBuilder(maxTokens int) Builder {
	return &builder{maxTokens: maxTokens}
}

func (b *builder) Build(task docgraph.Task, children []ChildSummary) backend.Request {
	var req backend.Request
	switch task.Stage {
	case docgraph.StageAPIDetail:
		req = b.apiDetail(task)
	case docgraph.StageModuleOverview:
		req = b.moduleOverview(task, children)
	case docgraph.StageProjectOverview:
		req = b.projectOverview(task, children)
	}
	req.MaxTokens = b.maxTokens
	return req
}

func (b *builder) apiDetail(task docgraph.Task) backend.Request {
	var ctx strings.Builder
	fmt.Fprintf(&ctx, "# %s `%s`\n", task.Kind, task.DisplayName)
	fmt.Fprintf(&ctx, "File: %s (language: %s)\n", task.FilePath, task.Language)
	if task.Signature != "" {
		fmt.Fprintf(&ctx, "Signature: `%s`\n", task.Signature)
	}
	writeFidelityNote(&ctx, task.Fidelity)
	fmt.Fprintf(&ctx, "\n## Source\n```%s\n%s\n```\n", task.Language, task.Snippet)

	prompt := fmt.Sprintf(
		"Document this %s for an API reference. Cover: purpose, parameters and "+
			"return values (when applicable), important behavior and edge cases, "+
			"and a short usage example. Be accurate; do not invent behavior the "+
			"source does not show.", task.Kind)
	return backend.Request{Prompt: prompt, Context: ctx.String()}
}

func (b *builder) moduleOverview(task docgraph.Task, children []ChildSummary) backend.Request {
	var ctx strings.Builder
	fmt.Fprintf(&ctx, "# Module `%s`\n", task.UnitName)
	fmt.Fprintf(&ctx, "Files: %s\n", strings.Join(task.Files, ", "))
	writeFidelityNote(&ctx, task.Fidelity)
	writeChildren(&ctx, "API summaries", children)

	prompt := "Write a module overview: what the module is for, its main types " +
		"and functions with one-line responsibilities, how it interacts with " +
		"the rest of the project, and typical usage. Base it on the API " +
		"summaries provided; keep the opening paragraph to roughly 150 words."
	return backend.Request{Prompt: prompt, Context: ctx.String()}
}

func (b *builder) projectOverview(task docgraph.Task, children []ChildSummary) backend.Request {
	var ctx strings.Builder
	ctx.WriteString("# Project\n")
	fmt.Fprintf(&ctx, "Source files: %d\n", len(task.Files))
	writeChildren(&ctx, "Module overviews", children)

	prompt := "Write the project overview page: what the project does, its " +
		"architecture at module granularity, main entry points, and how the " +
		"modules fit together. Base it on the module overviews provided."
	return backend.Request{Prompt: prompt, Context: ctx.String()}
}

func writeFidelityNote(w *strings.Builder, fidelity parser.Fidelity) {
	if fidelity == parser.FidelityDegraded {
		w.WriteString("\nNote: this structure was recovered by a fallback parser " +
			"after grammar parsing failed. Spans and signatures may be " +
			"approximate; reflect that reduced confidence in the documentation.\n")
	}
}

func writeChildren(w *strings.Builder, heading string, children []ChildSummary) {
	if len(children) == 0 {
		return
	}
	fmt.Fprintf(w, "\n## %s\n", heading)
	for _, child := range children {
		if !child.Available {
			fmt.Fprintf(w, "\n### %s\n[child documentation unavailable: %s]\n", child.Name, child.Name)
			continue
		}
		fmt.Fprintf(w, "\n### %s\n%s\n", child.Name, child.Text)
	}
}
