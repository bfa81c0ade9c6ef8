// Package state persists the resumable transfer state between runs.
//
// The state file is a plain JSON document at a configured path. A missing
// file is equivalent to empty state; read and write failures never abort a
// transfer, they only degrade resumability and are surfaced as warnings by
// the caller.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// HistoryEntry records the outcome of one sync run.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	RunID     string    `json:"runId,omitempty"`
}

// State is the durable record of what previous runs already transferred.
type State struct {
	// LastSync is the completion time of the most recent incremental run,
	// nil before the first successful run.
	LastSync *time.Time `json:"lastSync"`

	// ProcessedFindingKeys lists source finding keys already reconciled.
	ProcessedFindingKeys []string `json:"processedFindingKeys"`

	// CompletedBranches lists branches whose full transfer cycle finished.
	CompletedBranches []string `json:"completedBranches"`

	// SyncHistory records one entry per run, oldest first.
	SyncHistory []HistoryEntry `json:"syncHistory"`

	// PostedComments holds digests of comments already replayed onto the
	// destination, so re-running reconciliation does not re-post them.
	PostedComments []string `json:"postedComments,omitempty"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{}
}

// IsBranchCompleted reports whether a branch was fully transferred by a
// previous run.
func (s *State) IsBranchCompleted(branch string) bool {
	for _, b := range s.CompletedBranches {
		if b == branch {
			return true
		}
	}
	return false
}

// MarkBranchCompleted records a branch as fully transferred. Marking an
// already-completed branch is a no-op.
func (s *State) MarkBranchCompleted(branch string) {
	if s.IsBranchCompleted(branch) {
		return
	}
	s.CompletedBranches = append(s.CompletedBranches, branch)
}

// IsFindingProcessed reports whether a source finding key was already
// reconciled by a previous run.
func (s *State) IsFindingProcessed(key string) bool {
	for _, k := range s.ProcessedFindingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// MarkFindingProcessed records a source finding key as reconciled.
func (s *State) MarkFindingProcessed(key string) {
	if s.IsFindingProcessed(key) {
		return
	}
	s.ProcessedFindingKeys = append(s.ProcessedFindingKeys, key)
}

// HasPostedComment reports whether a comment digest was already replayed.
func (s *State) HasPostedComment(digest string) bool {
	for _, d := range s.PostedComments {
		if d == digest {
			return true
		}
	}
	return false
}

// RecordPostedComment records a comment digest as replayed.
func (s *State) RecordPostedComment(digest string) {
	if s.HasPostedComment(digest) {
		return
	}
	s.PostedComments = append(s.PostedComments, digest)
}

// AppendHistory appends a run outcome and updates the last-sync timestamp
// when the run succeeded.
func (s *State) AppendHistory(timestamp time.Time, success bool, runID string) {
	s.SyncHistory = append(s.SyncHistory, HistoryEntry{
		Timestamp: timestamp,
		Success:   success,
		RunID:     runID,
	})
	if success {
		t := timestamp
		s.LastSync = &t
	}
}

// Store reads and writes transfer state at a fixed file path.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (st *Store) Path() string {
	return st.path
}

// Load reads the state file. A missing file yields empty state and no error.
func (st *Store) Load() (*State, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return NewState(), fmt.Errorf("failed to read state file %s: %w", st.path, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return NewState(), fmt.Errorf("failed to parse state file %s: %w", st.path, err)
	}
	return &s, nil
}

// Save writes the state file, creating parent directories as needed.
func (st *Store) Save(s *State) error {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file %s: %w", st.path, err)
	}
	return nil
}
