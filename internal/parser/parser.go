package parser

import (
	"context"
	"path/filepath"
	"strings"
)

// Parser extracts a structural unit tree from one source file.
//
// A grammar failure never surfaces as an error: the parser degrades to the
// line-pattern extractor and marks the tree FidelityDegraded. Only an
// unreadable file is a hard error, and that is raised by the caller when
// reading the file, not here. Parsing is pure with respect to process state.
type Parser interface {
	// Parse builds the unit tree for src. The returned tree is never nil on
	// a nil error.
	Parse(ctx context.Context, src *SourceFile) (*FileTree, error)
}

// multiLanguageParser routes files to the Go AST parser, a tree-sitter
// grammar, or the fallback extractor based on file extension.
type multiLanguageParser struct {
	grammars map[string]*treeSitterExtractor
}

// New creates a parser supporting all built-in languages.
func New() Parser {
	p := &multiLanguageParser{grammars: make(map[string]*treeSitterExtractor)}
	for _, spec := range grammarSpecs() {
		p.grammars[spec.name] = newTreeSitterExtractor(spec)
	}
	return p
}

func (p *multiLanguageParser) Parse(ctx context.Context, src *SourceFile) (*FileTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	language := DetectLanguage(src.Path)

	if language == "go" {
		tree, err := parseGoFile(src)
		if err == nil {
			return tree, nil
		}
		// Grammar failure degrades, it does not block the run.
		return parseFallback(src, language), nil
	}

	if extractor, ok := p.grammars[language]; ok {
		if tree := extractor.parse(src); tree != nil {
			return tree, nil
		}
		return parseFallback(src, language), nil
	}

	// No grammar for this language: the fallback extractor still yields a
	// degraded unit tree so the file is documented rather than omitted.
	return parseFallback(src, language), nil
}

// DetectLanguage maps a file path to a language name by extension.
// Unknown extensions return "unknown".
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp", ".hh":
		return "cpp"
	case ".java":
		return "java"
	case ".php":
		return "php"
	case ".rb":
		return "ruby"
	default:
		return "unknown"
	}
}

// QualifyName builds the qualified name for a unit inside a file.
// File-level module units use the file path itself; nested units append
// "#Outer.Inner" segments.
func QualifyName(filePath string, segments ...string) string {
	if len(segments) == 0 {
		return filePath
	}
	return filePath + "#" + strings.Join(segments, ".")
}

// ModuleName returns the qualified name of the module (directory) that owns
// a file: its slash-separated directory path, or "." for the project root.
func ModuleName(filePath string) string {
	dir := filepath.ToSlash(filepath.Dir(filePath))
	if dir == "" {
		return "."
	}
	return dir
}

// newFileTree builds the file-level module unit shared by all extractors.
func newFileTree(src *SourceFile, language string, fidelity Fidelity) *FileTree {
	lines := strings.Count(string(src.Content), "\n") + 1
	return &FileTree{
		Path:        src.Path,
		Language:    language,
		Fidelity:    fidelity,
		ContentHash: src.Hash,
		Source:      src.Content,
		Root: &Unit{
			Kind:          KindModule,
			Name:          filepath.Base(src.Path),
			QualifiedName: src.Path,
			StartByte:     0,
			EndByte:       len(src.Content),
			StartLine:     1,
			EndLine:       lines,
		},
	}
}
