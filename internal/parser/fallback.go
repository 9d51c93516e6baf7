package parser

import (
	"regexp"
	"strings"
)

// fallbackPattern recognizes one family of top-level declarations by line
// shape. The fallback extractor is intentionally coarse: it recovers enough
// structure to document a file the grammar could not parse, and the result
// is always marked degraded.
type fallbackPattern struct {
	kind UnitKind
	re   *regexp.Regexp
}

var fallbackPatterns = []fallbackPattern{
	{KindType, regexp.MustCompile(`^\s*(?:export\s+)?(?:public\s+|private\s+|abstract\s+|final\s+)*(?:class|struct|interface|trait|enum)\s+([A-Za-z_][A-Za-z0-9_]*)`)},
	{KindFunction, regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)`)},
	{KindFunction, regexp.MustCompile(`^\s*(?:pub\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)},
	{KindFunction, regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)`)},
	{KindFunction, regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)`)},
	{KindFunction, regexp.MustCompile(`^\s*(?:[A-Za-z_][A-Za-z0-9_:<>,\s\*&]*\s+)([A-Za-z_][A-Za-z0-9_]*)\s*\([^;]*\)\s*(?:const\s*)?\{`)},
}

// parseFallback extracts top-level declarations by line patterns.
// It never fails; an unrecognizable file yields a tree with just the
// file-level module unit.
func parseFallback(src *SourceFile, language string) *FileTree {
	tree := newFileTree(src, language, FidelityDegraded)

	seen := make(map[string]bool)
	offset := 0
	lines := strings.SplitAfter(string(src.Content), "\n")
	for i, line := range lines {
		lineStart := offset
		offset += len(line)

		for _, p := range fallbackPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			qualified := QualifyName(src.Path, name)
			if seen[qualified] {
				break
			}
			seen[qualified] = true

			tree.Root.Children = append(tree.Root.Children, &Unit{
				Kind:          p.kind,
				Name:          name,
				QualifiedName: qualified,
				Signature:     strings.TrimSpace(strings.TrimRight(line, "\n")),
				StartByte:     lineStart,
				StartLine:     i + 1,
			})
			break
		}
	}

	// Without a grammar there is no reliable body extent: each unit's span
	// runs to the next declaration (or EOF), so a body edit still changes
	// the owning unit's content hash.
	for i, unit := range tree.Root.Children {
		if i+1 < len(tree.Root.Children) {
			unit.EndByte = tree.Root.Children[i+1].StartByte
			unit.EndLine = tree.Root.Children[i+1].StartLine - 1
		} else {
			unit.EndByte = len(src.Content)
			unit.EndLine = tree.Root.EndLine
		}
	}

	return tree
}
