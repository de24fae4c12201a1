package generators

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheEntry records one generated illustration keyed by prompt hash.
type cacheEntry struct {
	Key       string    `json:"key"`
	Prompt    string    `json:"prompt"`
	FilePath  string    `json:"file_path"`
	CreatedAt time.Time `json:"created_at"`
}

// IllustrationCache remembers which prompts already have a generated image
// so a resumed or repeated run does not pay for the same illustration
// twice. The index is persisted next to the images.
type IllustrationCache struct {
	entries   map[string]*cacheEntry
	directory string
	mu        sync.RWMutex
}

const cacheIndexFile = "index.json"

// NewIllustrationCache creates a cache rooted at directory.
func NewIllustrationCache(directory string) *IllustrationCache {
	return &IllustrationCache{
		entries:   make(map[string]*cacheEntry),
		directory: directory,
	}
}

// Initialize loads the persisted index. A missing or unreadable index is an
// empty cache, not an error.
func (c *IllustrationCache) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.directory, 0755); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(c.directory, cacheIndexFile))
	if err != nil {
		return nil
	}

	var entries []*cacheEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	for _, e := range entries {
		// Entries pointing at deleted files are dropped on load.
		if _, err := os.Stat(e.FilePath); err == nil {
			c.entries[e.Key] = e
		}
	}
	return nil
}

// Get returns the stored image path for the prompt, if any.
func (c *IllustrationCache) Get(prompt string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(prompt)]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(entry.FilePath); err != nil {
		return "", false
	}
	return entry.FilePath, true
}

// Put records a generated image path and persists the index.
func (c *IllustrationCache) Put(prompt, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(prompt)
	c.entries[key] = &cacheEntry{
		Key:       key,
		Prompt:    prompt,
		FilePath:  path,
		CreatedAt: time.Now().UTC(),
	}
	c.persistLocked()
}

// Len returns the number of cached illustrations.
func (c *IllustrationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *IllustrationCache) persistLocked() {
	entries := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return
	}
	tmp := filepath.Join(c.directory, cacheIndexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return
	}
	_ = os.Rename(tmp, filepath.Join(c.directory, cacheIndexFile))
}

func cacheKey(prompt string) string {
	sum := md5.Sum([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
