package records

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/tracker"
)

// FileEmitter writes tracker output as JSON files in a single directory.
// Write failures are logged and counted; they are never returned to the
// tracker.
type FileEmitter struct {
	fs    fsutil.FileSystem
	dir   string
	stamp string

	mu       sync.Mutex
	written  int
	failures int
	lastErr  error
}

var _ tracker.Emitter = (*FileEmitter)(nil)

// Stats summarises emitter activity.
type Stats struct {
	Written  int    `json:"written"`
	Failures int    `json:"failures"`
	LastErr  string `json:"last_error,omitempty"`
}

// NewFileEmitter creates dir if needed and returns an emitter whose file
// names carry the stamp of startedAt.
func NewFileEmitter(fs fsutil.FileSystem, dir string, startedAt time.Time) (*FileEmitter, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return &FileEmitter{
		fs:    fs,
		dir:   dir,
		stamp: Stamp(startedAt),
	}, nil
}

// Dir returns the output directory.
func (e *FileEmitter) Dir() string { return e.dir }

// Stamp returns the run stamp used in file names.
func (e *FileEmitter) Stamp() string { return e.stamp }

// EmitDistanceSnapshot overwrites the run's distance file with total.
func (e *FileEmitter) EmitDistanceSnapshot(total float64) {
	name := filepath.Join(e.dir, DistanceFileName(e.stamp))
	e.write(name, DistanceSnapshot{DistanceTravelled: total})
}

// EmitGoalRecord writes one goal record file.
func (e *FileEmitter) EmitGoalRecord(rec tracker.GoalRecord) {
	name := filepath.Join(e.dir, GoalFileName(rec.Index, e.stamp))
	if e.write(name, NewGoalFile(rec)) {
		monitoring.Logf("goal %d %s: wrote %s (%d samples, distance %.3f)", rec.Index, rec.Outcome, name, len(rec.Path), rec.Distance)
	}
}

// Stats returns a snapshot of write counters.
func (e *FileEmitter) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{Written: e.written, Failures: e.failures}
	if e.lastErr != nil {
		s.LastErr = e.lastErr.Error()
	}
	return s
}

func (e *FileEmitter) write(name string, v any) bool {
	data, err := json.Marshal(v)
	if err == nil {
		err = e.fs.WriteFile(name, data, 0644)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failures++
		e.lastErr = err
		monitoring.Logf("failed to write %s: %v", name, err)
		return false
	}
	e.written++
	return true
}
