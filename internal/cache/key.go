package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/codescribe-dev/codescribe/internal/docgraph"
)

// Key addresses one cached artifact. Two keys are equal only when the unit,
// its source span content hash, the generation stage, and the backend model
// all match — everything the expected output deterministically depends on,
// and nothing else.
type Key struct {
	UnitName    string
	ContentHash string
	Stage       docgraph.Stage
	Model       string
}

// KeyFor derives the cache key for a task under a given backend model.
func KeyFor(task docgraph.Task, model string) Key {
	return Key{
		UnitName:    task.UnitName,
		ContentHash: task.ContentHash,
		Stage:       task.Stage,
		Model:       model,
	}
}

// ID returns the content-addressed identifier used as the entry filename.
func (k Key) ID() string {
	seed := strings.Join([]string{k.UnitName, k.ContentHash, string(k.Stage), k.Model}, "\x00")
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}
