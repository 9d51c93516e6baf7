package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// Fidelity indicates how the structural tree for a file was produced.
type Fidelity string

const (
	// FidelityFull means the primary grammar-based parser produced the tree.
	FidelityFull Fidelity = "full"

	// FidelityDegraded means the fallback line-pattern extractor produced the
	// tree after the grammar failed (or no grammar exists for the language).
	FidelityDegraded Fidelity = "degraded"
)

// UnitKind is the kind of source construct a structural unit represents.
type UnitKind string

const (
	KindModule   UnitKind = "module"
	KindType     UnitKind = "type"
	KindFunction UnitKind = "function"
)

// Unit is one parsed source construct. Units form a tree: a file-level
// module unit owns its types and functions, and types own their methods.
// A unit is owned by the SourceFile that produced it and is never shared
// across files.
type Unit struct {
	Kind          UnitKind
	Name          string
	QualifiedName string // e.g. "pkg/queue/queue.py#Worker.run"
	Signature     string

	// Byte span [StartByte, EndByte) in the owning file's content.
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int

	Children []*Unit
}

// Walk visits u and all descendants in depth-first order.
func (u *Unit) Walk(visit func(*Unit)) {
	if u == nil {
		return
	}
	visit(u)
	for _, child := range u.Children {
		child.Walk(visit)
	}
}

// FileTree is the structural tree extracted from one source file.
type FileTree struct {
	Path        string // relative, slash-separated
	Language    string
	Fidelity    Fidelity
	ContentHash string // hash of the whole file's bytes
	Source      []byte
	Root        *Unit // KindModule unit spanning the file
}

// SpanHash returns the content hash of a unit's own byte span.
// Cache correctness depends on this hash alone, never on file mtime.
func (t *FileTree) SpanHash(u *Unit) string {
	start, end := u.StartByte, u.EndByte
	if start < 0 {
		start = 0
	}
	if end > len(t.Source) {
		end = len(t.Source)
	}
	if start >= end {
		return HashBytes(nil)
	}
	return HashBytes(t.Source[start:end])
}

// SpanText returns the source text of a unit's byte span.
func (t *FileTree) SpanText(u *Unit) string {
	start, end := u.StartByte, u.EndByte
	if start < 0 {
		start = 0
	}
	if end > len(t.Source) {
		end = len(t.Source)
	}
	if start >= end {
		return ""
	}
	return string(t.Source[start:end])
}

// SourceFile is one candidate file read from disk. Immutable once read;
// re-read on every run.
type SourceFile struct {
	Path    string // relative, slash-separated
	AbsPath string
	Content []byte
	Hash    string
}

// ReadSource reads a source file under rootDir and computes its content hash.
func ReadSource(rootDir, relPath string) (*SourceFile, error) {
	absPath := filepath.Join(rootDir, filepath.FromSlash(relPath))
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	return &SourceFile{
		Path:    relPath,
		AbsPath: absPath,
		Content: content,
		Hash:    HashBytes(content),
	}, nil
}

// HashBytes returns the SHA-256 hash of data as hex.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
