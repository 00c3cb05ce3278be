package whisper

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"vidscribe/errors"
)

// Model is a loaded (resolved and verified) transcription model.
type Model struct {
	ID   string
	Path string
}

// Cache resolves models at most once per identifier. Concurrent first
// use for the same identifier shares a single load; later calls reuse
// the cached instance for the process lifetime.
type Cache struct {
	dir    string
	loader func(dir, id string) (*Model, error)

	mu     sync.RWMutex
	models map[string]*Model
	group  singleflight.Group
}

func NewCache(modelDir string) *Cache {
	return &Cache{
		dir:    modelDir,
		loader: resolveModelFile,
		models: make(map[string]*Model),
	}
}

// Get returns the cached model or performs the load-or-wait dance for
// its first use.
func (c *Cache) Get(id string) (*Model, error) {
	const op = "whisper.Cache.Get"

	if !IsValidModel(id) {
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("Invalid model: %s", id))
	}

	c.mu.RLock()
	if m, ok := c.models[id]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(id, func() (any, error) {
		m, err := c.loader(c.dir, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.models[id] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// resolveModelFile locates the ggml weights file for a model id.
func resolveModelFile(dir, id string) (*Model, error) {
	const op = "whisper.resolveModelFile"

	path := filepath.Join(dir, "ggml-"+id+".bin")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Internal(op, err,
			fmt.Sprintf("Model %s is not available on this server.", id))
	}
	return &Model{ID: id, Path: path}, nil
}
