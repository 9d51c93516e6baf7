package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Scanner:
// - Scan() returns only files matching an include pattern
// - Scan() applies exclude patterns to files and whole directories
// - Scan() matches root-level files against **/ prefixed patterns
// - Scan() never descends into the tool's own work directory
// - Scan() skips unreadable directories instead of failing the scan
// - Scan() returns sorted relative slash paths
// - New() rejects malformed glob patterns

func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("content\n"), 0644))
	}
}

func TestScan_IncludePatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root,
		"main.py",
		"pkg/util.py",
		"pkg/util_test.py",
		"README.md",
		"assets/logo.png",
	)

	s, err := New(root, []string{"**/*.py"}, nil)
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)

	// Root-level main.py matches via the **/ simplification; non-Python
	// files are filtered out.
	assert.Equal(t, []string{"main.py", "pkg/util.py", "pkg/util_test.py"}, files)
}

func TestScan_ExcludePatterns(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root,
		"app.py",
		"node_modules/lib/index.js",
		"node_modules/lib/setup.py",
		"pkg/generated.py",
		"pkg/handler.py",
	)

	s, err := New(root,
		[]string{"**/*.py", "**/*.js"},
		[]string{"node_modules/**", "**/generated.py"},
	)
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"app.py", "pkg/handler.py"}, files)
}

func TestScan_SkipsWorkDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root,
		"main.go",
		WorkDir+"/cache/abc123.json",
		WorkDir+"/config.yml",
	)

	s, err := New(root, []string{"**/*"}, nil)
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go"}, files)
}

func TestScan_UnreadableDirectoryIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "main.py", "locked/secret.py", "pkg/util.py")

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	s, err := New(root, []string{"**/*.py"}, nil)
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"main.py", "pkg/util.py"}, files)
}

func TestScan_SortedOutput(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFiles(t, root, "z.go", "a/b.go", "a/a.go", "m.go")

	s, err := New(root, []string{"**/*.go"}, nil)
	require.NoError(t, err)

	files, err := s.Scan()
	require.NoError(t, err)

	assert.Equal(t, []string{"a/a.go", "a/b.go", "m.go", "z.go"}, files)
}

func TestNew_RejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := New(t.TempDir(), []string{"[unclosed"}, nil)
	assert.Error(t, err)
}
