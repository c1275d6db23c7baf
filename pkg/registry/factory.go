package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Factory hands out SessionRegistry instances keyed by session id. Instances
// are memoized per process so every caller for the same session shares one
// registry and its write lock; no component reaches into ambient global
// state to find "the current registry".
type Factory struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger

	mu   sync.Mutex
	open map[string]*SessionRegistry
}

// NewFactory creates a registry factory rooted at dir.
func NewFactory(fs afero.Fs, dir string, logger *zap.Logger) *Factory {
	return &Factory{
		fs:     fs,
		dir:    dir,
		logger: logger,
		open:   map[string]*SessionRegistry{},
	}
}

// ForSession returns the registry for a session id, creating it (and its
// backing directory) on first use.
func (f *Factory) ForSession(sessionID string) (*SessionRegistry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("session id is empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.open[sessionID]; ok {
		return r, nil
	}
	r, err := openSession(f.fs, f.dir, sessionID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("opening session %q: %w", sessionID, err)
	}
	f.open[sessionID] = r
	return r, nil
}

// Sessions lists the session ids with a persisted history file, sorted.
// Ids are reconstructed from file names, so ids containing characters that
// were sanitized away list under their sanitized form.
func (f *Factory) Sessions() ([]string, error) {
	infos, err := afero.ReadDir(f.fs, f.dir)
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing session directory: %w", err)
	}

	var sessions []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(info.Name(), ".json"))
	}
	sort.Strings(sessions)
	return sessions, nil
}

// Dir returns the storage root, for diagnostics.
func (f *Factory) Dir() string {
	return f.dir
}

// CheckWritable verifies the storage root exists and accepts writes,
// creating the directory if missing. A failure here means every Record
// call would fail too, so diagnostics surface it before any query runs.
func (f *Factory) CheckWritable() error {
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	probe := filepath.Join(f.dir, ".write-check")
	if err := afero.WriteFile(f.fs, probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("writing to session directory: %w", err)
	}
	if err := f.fs.Remove(probe); err != nil {
		return fmt.Errorf("cleaning up write check: %w", err)
	}
	return nil
}
