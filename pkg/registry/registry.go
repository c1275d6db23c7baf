// Package registry stores executed-query results per session, mirrored to a
// JSON file so results survive restarts and can be re-fetched by index.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/apperrors"
	"github.com/queryward/queryward/pkg/models"
)

// NotFoundError reports a lookup for a missing index along with the indices
// that do exist, so a calling agent can self-correct.
type NotFoundError struct {
	Index        int
	ValidIndices []int
}

func (e *NotFoundError) Error() string {
	if len(e.ValidIndices) == 0 {
		return fmt.Sprintf("no result at index %d: no results recorded in this session", e.Index)
	}
	return fmt.Sprintf("no result at index %d: valid indices are %v", e.Index, e.ValidIndices)
}

func (e *NotFoundError) Unwrap() error {
	return apperrors.ErrNotFound
}

// SessionRegistry owns the append-only result history for one session.
// Index assignment starts at 1 and is never reused. Every record call
// atomically rewrites the session file: a crash leaves either the prior or
// the new complete state, never a partial file.
//
// All methods are safe for concurrent use; the internal mutex serializes
// index assignment and file writes, so callers sharing an instance through
// the factory get single-writer discipline for free.
type SessionRegistry struct {
	fs        afero.Fs
	path      string
	sessionID string
	logger    *zap.Logger

	mu        sync.Mutex
	entries   []models.QueryResultEntry
	nextIndex int
}

// openSession loads or initializes the registry for one session id. Called
// by the factory only.
func openSession(fs afero.Fs, dir, sessionID string, logger *zap.Logger) (*SessionRegistry, error) {
	if err := fs.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}

	r := &SessionRegistry{
		fs:        fs,
		path:      filepath.Join(dir, sessionFileName(sessionID)),
		sessionID: sessionID,
		logger:    logger.Named("registry").With(zap.String("session_id", sessionID)),
		nextIndex: 1,
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// Record assigns the next index, timestamps the entry, appends it, and
// rewrites the session file. A persistence failure is returned wrapped in
// ErrRegistryPersistence but the entry is still valid and retained in
// memory: durability failure must not mask a successful query.
func (r *SessionRegistry) Record(queryText string, result models.QueryResult) (models.QueryResultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result.Index = r.nextIndex
	entry := models.QueryResultEntry{
		Index:     r.nextIndex,
		Timestamp: time.Now().UTC(),
		QueryText: queryText,
		Result:    result,
	}
	r.entries = append(r.entries, entry)
	r.nextIndex++

	if err := r.persist(); err != nil {
		r.logger.Error("failed to persist session file", zap.Error(err))
		return entry, fmt.Errorf("%w: %v", apperrors.ErrRegistryPersistence, err)
	}

	r.logger.Debug("recorded query result",
		zap.Int("index", entry.Index),
		zap.Bool("success", result.Success))
	return entry, nil
}

// Get returns the entry at a 1-based index. Repeated calls for the same
// valid index return identical data.
func (r *SessionRegistry) Get(index int) (models.QueryResultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.Index == index {
			return entry, nil
		}
	}
	return models.QueryResultEntry{}, &NotFoundError{Index: index, ValidIndices: r.indicesLocked()}
}

// Latest returns the most recently recorded entry.
func (r *SessionRegistry) Latest() (models.QueryResultEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) == 0 {
		return models.QueryResultEntry{}, &NotFoundError{Index: 0}
	}
	return r.entries[len(r.entries)-1], nil
}

// List returns all entries in recording order.
func (r *SessionRegistry) List() []models.QueryResultEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.QueryResultEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of recorded entries.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SessionID returns the owning session id.
func (r *SessionRegistry) SessionID() string {
	return r.sessionID
}

// Clear removes the session file and resets in-memory state. Index
// assignment restarts at 1 for the now-fresh session.
func (r *SessionRegistry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fs.Remove(r.path); err != nil && !isNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	r.entries = nil
	r.nextIndex = 1
	r.logger.Info("session history cleared")
	return nil
}

// ExportJSON renders the full session history as indented JSON, the same
// shape the session file uses.
func (r *SessionRegistry) ExportJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(r.historyLocked(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling session history: %w", err)
	}
	return data, nil
}

// load reads a pre-existing session file, if any, and resumes index
// assignment after the highest recorded index.
func (r *SessionRegistry) load() error {
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading session file: %w", err)
	}

	var hist models.SessionHistory
	if err := json.Unmarshal(data, &hist); err != nil {
		return fmt.Errorf("parsing session file %s: %w", r.path, err)
	}

	r.entries = hist.Entries
	for _, entry := range r.entries {
		if entry.Index >= r.nextIndex {
			r.nextIndex = entry.Index + 1
		}
	}
	return nil
}

// persist atomically rewrites the session file: the new state is written to
// a temporary file in the same directory and renamed over the old one.
func (r *SessionRegistry) persist() error {
	data, err := json.MarshalIndent(r.historyLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session history: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp session file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (r *SessionRegistry) historyLocked() models.SessionHistory {
	return models.SessionHistory{SessionID: r.sessionID, Entries: r.entries}
}

func (r *SessionRegistry) indicesLocked() []int {
	indices := make([]int, 0, len(r.entries))
	for _, entry := range r.entries {
		indices = append(indices, entry.Index)
	}
	return indices
}

// isNotExist matches both the OS and the in-memory filesystem not-found
// errors; afero's ErrFileNotFound aliases os.ErrNotExist.
func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

var unsafeSessionChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// sessionFileName maps a session id to a filesystem-safe file name.
func sessionFileName(sessionID string) string {
	return unsafeSessionChars.ReplaceAllString(sessionID, "_") + ".json"
}
