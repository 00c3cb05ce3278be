// Package scratch manages per-job temporary storage. Every acquisition
// returns a handle whose Release must run on all exit paths of the
// owning operation.
package scratch

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Handle owns one temporary directory or file. Release is idempotent.
type Handle struct {
	path    string
	once    sync.Once
	cleanup func(string) error
}

func (h *Handle) Path() string {
	return h.path
}

// Release removes the underlying path. Safe to call more than once and
// on every exit path; only the first call does work.
func (h *Handle) Release() error {
	var err error
	h.once.Do(func() {
		err = h.cleanup(h.path)
	})
	return err
}

// Manager selects the scratch root once and hands out scoped handles.
// The root prefers fast storage: an explicit override first, then
// platform-conventional fast paths, then the system default. First
// writable candidate wins.
type Manager struct {
	override string

	rootOnce sync.Once
	root     string
}

func NewManager(override string) *Manager {
	return &Manager{override: override}
}

// Root resolves and caches the scratch root directory.
func (m *Manager) Root() string {
	m.rootOnce.Do(func() {
		candidates := []string{m.override, "/tmp", "/dev/shm", os.TempDir()}
		for _, dir := range candidates {
			if dir == "" {
				continue
			}
			if isWritableDir(dir) {
				m.root = dir
				return
			}
		}
		m.root = os.TempDir()
	})
	return m.root
}

// AcquireDir creates a job-scoped temporary directory under the root.
func (m *Manager) AcquireDir(pattern string) (*Handle, error) {
	dir, err := os.MkdirTemp(m.Root(), pattern)
	if err != nil {
		return nil, errors.Wrap(err, "create scratch directory")
	}
	return &Handle{path: dir, cleanup: os.RemoveAll}, nil
}

// AcquireFile creates a named temporary file under the root with the
// given suffix and returns its handle. The file is closed; callers pass
// the path to external tools.
func (m *Manager) AcquireFile(pattern, suffix string) (*Handle, error) {
	f, err := os.CreateTemp(m.Root(), pattern+"*"+suffix)
	if err != nil {
		return nil, errors.Wrap(err, "create scratch file")
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, errors.Wrap(err, "close scratch file")
	}
	return &Handle{path: path, cleanup: removeIfExists}, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// isWritableDir verifies the candidate exists and accepts a write probe.
func isWritableDir(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	probe, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return false
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(name))
	return true
}
