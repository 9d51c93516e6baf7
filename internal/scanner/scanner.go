// Package scanner walks a project root applying include/exclude glob rules
// and yields candidate source file paths.
package scanner

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// WorkDir is the tool's own directory inside a project; always ignored.
const WorkDir = ".codescribe"

// compiledPattern holds both the pattern string and compiled glob.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Scanner discovers source files under a root directory.
type Scanner struct {
	rootDir         string
	includePatterns []compiledPattern
	excludePatterns []compiledPattern
}

// New compiles the glob rule set for rootDir.
func New(rootDir string, includePatterns, excludePatterns []string) (*Scanner, error) {
	s := &Scanner{rootDir: rootDir}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		s.includePatterns = append(s.includePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		s.excludePatterns = append(s.excludePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return s, nil
}

// Scan walks the root directory and returns the matching files as sorted
// relative slash-separated paths. Sorting keeps downstream ordering
// deterministic across runs.
func (s *Scanner) Scan() ([]string, error) {
	var files []string

	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// One unreadable entry must not abort the whole scan.
			log.Printf("Warning: skipping unreadable path %s: %v\n", path, err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(s.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath == WorkDir || s.shouldExclude(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.shouldExclude(relPath) {
			return nil
		}
		if s.matchesAny(relPath, s.includePatterns) {
			files = append(files, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func (s *Scanner) shouldExclude(relPath string) bool {
	if relPath == WorkDir || strings.HasPrefix(relPath, WorkDir+"/") {
		return true
	}
	if s.matchesAny(relPath, s.excludePatterns) {
		return true
	}
	// A bare directory should also match patterns written with a /** suffix,
	// e.g. "node_modules" against "node_modules/**".
	return s.matchesAny(relPath+"/**", s.excludePatterns)
}

// matchesAny checks a path against the compiled patterns. Root-level files
// additionally match patterns written with a **/ prefix, so "**/*.py"
// matches both "main.py" and "pkg/util.py" as users expect.
func (s *Scanner) matchesAny(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if g, err := glob.Compile(simplified, '/'); err == nil && g.Match(path) {
					return true
				}
			}
		}
	}

	return false
}
