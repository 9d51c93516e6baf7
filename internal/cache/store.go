// Package cache is the persistent content-addressed store for generated
// documentation. It is the single source of truth for "already documented"
// and is mutated only through Store and Sweep.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/codescribe-dev/codescribe/internal/docgraph"
)

const (
	entrySuffix = ".json"
	hotCapacity = 4096
)

// Entry is one cached artifact together with the key fields it was stored
// under, so entries remain self-describing when inspected or swept.
type Entry struct {
	UnitName    string         `json:"unit"`
	ContentHash string         `json:"content_hash"`
	Stage       docgraph.Stage `json:"stage"`
	Model       string         `json:"model"`
	Text        string         `json:"text"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Stats summarizes the store's contents.
type Stats struct {
	Entries int            `json:"entries"`
	ByStage map[string]int `json:"by_stage"`
	Dir     string         `json:"dir"`
}

// Store is a directory of entry files fronted by an in-process hot tier.
// Disk is authoritative; the hot tier is read-through/write-through. The
// index mutex serializes directory mutation — distinct keys never collide
// within a run, so no finer locking is needed.
type Store struct {
	dir string

	mu  sync.Mutex
	hot otter.Cache[string, Entry]
}

// Open creates the cache directory if needed and returns a store handle.
// Multiple independent stores may coexist in one process.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	hot, err := otter.MustBuilder[string, Entry](hotCapacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build hot cache tier: %w", err)
	}
	return &Store{dir: dir, hot: hot}, nil
}

// Lookup returns the entry for key, or false on a miss. A corrupt or
// unreadable entry file is reported and treated as a miss for this run; it
// never affects other entries.
func (s *Store) Lookup(key Key) (Entry, bool) {
	id := key.ID()

	if entry, ok := s.hot.Get(id); ok {
		return entry, true
	}

	data, err := os.ReadFile(s.entryPath(id))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: failed to read cache entry %s: %v\n", id, err)
		}
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("Warning: corrupt cache entry %s treated as miss: %v\n", id, err)
		return Entry{}, false
	}
	s.hot.Set(id, entry)
	return entry, true
}

// Store writes the generated text under key, overwriting any existing
// entry. The write is atomic: temp file in the same directory, then rename.
func (s *Store) Store(key Key, text string) error {
	entry := Entry{
		UnitName:    key.UnitName,
		ContentHash: key.ContentHash,
		Stage:       key.Stage,
		Model:       key.Model,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	id := key.ID()

	s.mu.Lock()
	defer s.mu.Unlock()

	tempPath := s.entryPath(id) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tempPath, s.entryPath(id)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to finalize cache entry: %w", err)
	}

	s.hot.Set(id, entry)
	return nil
}

// Sweep deletes entries no run can serve anymore: units absent from live
// (deleted or renamed sources) and superseded entries whose content hash no
// longer matches the unit's current one. live maps each unit name to its
// current content hash. Returns the number of entries removed.
func (s *Store) Sweep(live map[string]string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryFiles()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		entryPath := filepath.Join(s.dir, name)
		data, err := os.ReadFile(entryPath)
		if err != nil {
			log.Printf("Warning: failed to read cache entry during sweep: %v\n", err)
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Corrupt entries are unreadable by Lookup too; reclaim them.
			if err := os.Remove(entryPath); err == nil {
				removed++
			}
			continue
		}
		if current, ok := live[entry.UnitName]; ok && current == entry.ContentHash {
			continue
		}
		if err := os.Remove(entryPath); err != nil {
			log.Printf("Warning: failed to remove stale cache entry %s: %v\n", name, err)
			continue
		}
		s.hot.Delete(strings.TrimSuffix(name, entrySuffix))
		removed++
	}
	return removed, nil
}

// Stats reports entry counts, total and per stage.
func (s *Store) Stats() (*Stats, error) {
	names, err := s.entryFiles()
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByStage: make(map[string]int), Dir: s.dir}
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			continue
		}
		stats.Entries++
		stats.ByStage[string(entry.Stage)]++
	}
	return stats, nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entryFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("failed to remove cache entry %s: %w", name, err)
		}
		s.hot.Delete(strings.TrimSuffix(name, entrySuffix))
	}
	return nil
}

func (s *Store) entryPath(id string) string {
	return filepath.Join(s.dir, id+entrySuffix)
}

func (s *Store) entryFiles() ([]string, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), entrySuffix) {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}
