// Package storage persists solver runs: metadata, the iteration log and the
// optimized trajectory.
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lizqwerscott/ocs2-ros2/internal/dynamo"
	"github.com/lizqwerscott/ocs2-ros2/internal/slq"
)

var (
	ErrNotFound           = errors.New("storage: run not found")
	ErrBackendUnavailable = errors.New("storage: backend not compiled in")
)

type RunMetadata struct {
	ID         string             `json:"id"`
	Model      string             `json:"model"`
	Kind       string             `json:"kind"`
	Timestamp  time.Time          `json:"timestamp"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	Reason     string             `json:"reason"`
	Elapsed    time.Duration      `json:"elapsed"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Run is everything stored for one solve.
type Run struct {
	Meta       RunMetadata
	Iterations []slq.IterationRecord
	Trajectory dynamo.Trajectory
}

type Store interface {
	Init() error
	Save(run *Run) (string, error)
	List() ([]RunMetadata, error)
	Load(id string) (*RunMetadata, error)
	LoadIterations(id string) ([]slq.IterationRecord, error)
	LoadTrajectory(id string) (*dynamo.Trajectory, error)
	Close() error
}

// Open returns the store for backend rooted at dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "file", "":
		return NewFileStore(dir), nil
	case "sqlite":
		return NewSQLiteStore(dir)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}

// newID assigns an identifier and timestamp to a run that has none.
func newID(meta *RunMetadata) {
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%s", meta.Model, uuid.NewString()[:8])
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
}
