// Package catalog provides the in-memory cue catalog.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jmylchreest/cuedeck/internal/model"
)

// ChangeType indicates the type of catalog change.
type ChangeType int

const (
	// ChangeTypeAdd indicates cues were added.
	ChangeTypeAdd ChangeType = iota
	// ChangeTypeReplace indicates an existing cue was overwritten.
	ChangeTypeReplace
	// ChangeTypeRemove indicates a cue was removed.
	ChangeTypeRemove
)

// ChangeEvent signals catalog content changes.
type ChangeEvent struct {
	Type  ChangeType
	Count int
	Path  string
}

// Catalog is the ordered collection of cues. FilePath is the uniqueness key.
type Catalog struct {
	mu         sync.RWMutex
	logger     *slog.Logger
	cues       []model.Cue
	index      map[string]int // file_path -> slice index
	extensions []string

	subscribers []chan ChangeEvent
	closed      bool
}

// New creates an empty catalog recognising the given extensions on Load.
// A nil list means model.DefaultExtensions.
func New(extensions []string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		logger:     logger,
		cues:       make([]model.Cue, 0),
		index:      make(map[string]int),
		extensions: extensions,
	}
}

// Load scans dir non-recursively and adds audio files not already present.
// Returns the number of cues added. A missing directory adds nothing.
func (c *Catalog) Load(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	// ReadDir sorts by filename, which gives a stable initial order
	found := make([]model.Cue, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !model.IsAudioFile(entry.Name(), c.extensions) {
			continue
		}
		cue, err := model.CueFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return 0, err
		}
		found = append(found, *cue)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}

	added := 0
	for _, cue := range found {
		if _, exists := c.index[cue.FilePath]; exists {
			continue
		}
		c.index[cue.FilePath] = len(c.cues)
		c.cues = append(c.cues, cue)
		added++
	}

	if added > 0 {
		c.logger.Debug("catalog loaded cues", "dir", dir, "added", added)
		c.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: added})
	}
	return added, nil
}

// Add inserts a cue. A cue whose FilePath is already present replaces the
// existing entry in place.
func (c *Catalog) Add(cue model.Cue) error {
	if err := cue.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	if idx, exists := c.index[cue.FilePath]; exists {
		c.cues[idx] = cue
		c.notifyChange(ChangeEvent{Type: ChangeTypeReplace, Count: 1, Path: cue.FilePath})
		return nil
	}

	c.index[cue.FilePath] = len(c.cues)
	c.cues = append(c.cues, cue)
	c.notifyChange(ChangeEvent{Type: ChangeTypeAdd, Count: 1, Path: cue.FilePath})
	return nil
}

// Remove deletes the cue with the given file path. It is the only deletion
// path and must only be called once the file is gone. Returns false if no
// cue matched.
func (c *Catalog) Remove(path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, ErrClosed
	}

	idx, exists := c.index[path]
	if !exists {
		return false, nil
	}

	c.cues = append(c.cues[:idx], c.cues[idx+1:]...)

	// Rebuild index
	c.index = make(map[string]int, len(c.cues))
	for i, cue := range c.cues {
		c.index[cue.FilePath] = i
	}

	c.notifyChange(ChangeEvent{Type: ChangeTypeRemove, Count: 1, Path: path})
	return true, nil
}

// All returns a copy of every cue in catalog order.
func (c *Catalog) All() []model.Cue {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]model.Cue, len(c.cues))
	copy(result, c.cues)
	return result
}

// Existing returns the cues whose files are present on disk, in catalog order.
func (c *Catalog) Existing() []model.Cue {
	all := c.All()
	result := make([]model.Cue, 0, len(all))
	for _, cue := range all {
		if _, err := os.Stat(cue.FilePath); err == nil {
			result = append(result, cue)
		}
	}
	return result
}

// Get returns the cue with the given file path.
func (c *Catalog) Get(path string) (model.Cue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if idx, exists := c.index[path]; exists {
		return c.cues[idx], true
	}
	return model.Cue{}, false
}

// Count returns the number of cues.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cues)
}

// Sorted returns a copy of the cues ordered by field ("name", "added", or
// "" for catalog order).
func (c *Catalog) Sorted(field string) []model.Cue {
	cues := c.All()
	switch field {
	case "name":
		sort.SliceStable(cues, func(i, j int) bool {
			return lower(cues[i].Name) < lower(cues[j].Name)
		})
	case "added":
		sort.SliceStable(cues, func(i, j int) bool {
			return cues[i].AddedAt < cues[j].AddedAt
		})
	}
	return cues
}

// Subscribe returns a channel that receives change events.
func (c *Catalog) Subscribe() <-chan ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan ChangeEvent, 10)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription channel.
func (c *Catalog) Unsubscribe(ch <-chan ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Close closes the catalog and all subscriber channels.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for _, ch := range c.subscribers {
		close(ch)
	}
	c.subscribers = nil
	return nil
}

// notifyChange sends a change event to all subscribers without blocking.
// Must be called with the lock held.
func (c *Catalog) notifyChange(event ChangeEvent) {
	for _, ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// Errors
var (
	ErrClosed = catalogError("catalog is closed")
)

type catalogError string

func (e catalogError) Error() string {
	return string(e)
}
