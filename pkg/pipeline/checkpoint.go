package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidRunID is returned when a run ID contains invalid characters
var ErrInvalidRunID = errors.New("invalid run ID: contains path traversal or invalid characters")

// Phase represents a step in the ingestion pipeline
type Phase string

const (
	PhaseInitial      Phase = "initial"
	PhaseCompanies    Phase = "companies"
	PhasePeople       Phase = "people"
	PhaseRepositories Phase = "repositories"
	PhaseEdges        Phase = "edges"
	PhaseHubs         Phase = "hubs"
	PhaseSimilarity   Phase = "similarity"
	PhaseCompleted    Phase = "completed"
)

// Checkpoint records the state of a partially completed ingestion run so an
// interrupted run can resume without re-embedding what it already wrote.
type Checkpoint struct {
	RunID string `json:"run_id"`
	Phase Phase  `json:"phase"`

	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	AttemptCount  int       `json:"attempt_count"`
	LastError     string    `json:"last_error,omitempty"`

	// ProcessedIDs holds the node ids already upserted in the current phase.
	ProcessedIDs map[string]bool `json:"processed_ids,omitempty"`

	CompaniesFile    string `json:"companies_file,omitempty"`
	RepositoriesFile string `json:"repositories_file,omitempty"`
}

// Done reports whether id was already processed.
func (c *Checkpoint) Done(id string) bool {
	return c.ProcessedIDs[id]
}

// MarkDone records id as processed.
func (c *Checkpoint) MarkDone(id string) {
	if c.ProcessedIDs == nil {
		c.ProcessedIDs = make(map[string]bool)
	}
	c.ProcessedIDs[id] = true
}

// Clone returns a deep copy, so the copy can be serialized while the
// original keeps changing under the caller's lock.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	if c.ProcessedIDs != nil {
		out.ProcessedIDs = make(map[string]bool, len(c.ProcessedIDs))
		for id, done := range c.ProcessedIDs {
			out.ProcessedIDs[id] = done
		}
	}
	return &out
}

// CheckpointManager persists run checkpoints as JSON files.
type CheckpointManager struct {
	dir string
}

// NewCheckpointManager creates a checkpoint manager. An empty dir defaults
// to a directory under os.TempDir().
func NewCheckpointManager(dir string) (*CheckpointManager, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "venturegraph-checkpoints")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &CheckpointManager{dir: dir}, nil
}

// validateRunID rejects IDs that could escape the checkpoint directory.
func validateRunID(runID string) error {
	if runID == "" ||
		strings.Contains(runID, "..") ||
		strings.ContainsAny(runID, `/\`) ||
		strings.ContainsRune(runID, '\x00') {
		return ErrInvalidRunID
	}
	return nil
}

// Path returns the checkpoint file path for a run.
func (m *CheckpointManager) Path(runID string) (string, error) {
	if err := validateRunID(runID); err != nil {
		return "", err
	}
	full := filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json", runID))

	cleanDir := filepath.Clean(m.dir) + string(filepath.Separator)
	if !strings.HasPrefix(filepath.Clean(full), cleanDir) {
		return "", ErrInvalidRunID
	}
	return full, nil
}

// Save persists the checkpoint atomically: write to a temp file, then
// rename over the target. The temp file name is unique per call so
// concurrent saves of the same run never collide; the rename decides
// which snapshot wins.
func (m *CheckpointManager) Save(ctx context.Context, cp *Checkpoint) error {
	cp.LastUpdatedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	path, err := m.Path(cp.RunID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(m.dir, fmt.Sprintf("checkpoint_%s_*.tmp", cp.RunID))
	if err != nil {
		return fmt.Errorf("failed to create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}
	return nil
}

// Load retrieves a checkpoint. A missing checkpoint returns nil, nil.
func (m *CheckpointManager) Load(ctx context.Context, runID string) (*Checkpoint, error) {
	path, err := m.Path(runID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	cp := &Checkpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Delete removes a run's checkpoint. Deleting a missing checkpoint is not
// an error.
func (m *CheckpointManager) Delete(ctx context.Context, runID string) error {
	path, err := m.Path(runID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// RecordError bumps the attempt count and stores the error message.
func (m *CheckpointManager) RecordError(ctx context.Context, cp *Checkpoint, err error) error {
	cp.AttemptCount++
	cp.LastError = err.Error()
	return m.Save(ctx, cp)
}
