package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/banshee-data/motion.report/internal/fsutil"
)

// GoalSummary describes one persisted goal record without its path.
type GoalSummary struct {
	Index    int     `json:"index"`
	File     string  `json:"file"`
	Status   string  `json:"status"`
	Distance float64 `json:"distance_travelled"`
	Samples  int     `json:"samples"`
}

// Store reads back the records of one run.
type Store struct {
	fs    fsutil.FileSystem
	dir   string
	stamp string
}

// NewStore returns a reader for the run identified by stamp in dir.
func NewStore(fs fsutil.FileSystem, dir, stamp string) *Store {
	return &Store{fs: fs, dir: dir, stamp: stamp}
}

// Stamp returns the run stamp the store reads.
func (s *Store) Stamp() string { return s.stamp }

// LoadDistance returns the latest persisted distance snapshot.
func (s *Store) LoadDistance() (DistanceSnapshot, error) {
	var snap DistanceSnapshot
	err := s.readJSON(DistanceFileName(s.stamp), &snap)
	return snap, err
}

// LoadGoal returns the goal record with the given index.
func (s *Store) LoadGoal(index int) (GoalFile, error) {
	var g GoalFile
	err := s.readJSON(GoalFileName(index, s.stamp), &g)
	return g, err
}

// ListGoals returns summaries of every goal record of the run, ordered by
// index. Unreadable files are skipped.
func (s *Store) ListGoals() ([]GoalSummary, error) {
	names, err := s.fs.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	out := []GoalSummary{}
	for _, name := range names {
		index, stamp, err := ParseGoalFileName(name)
		if err != nil || stamp != s.stamp {
			continue
		}
		var g GoalFile
		if err := s.readJSON(name, &g); err != nil {
			continue
		}
		out = append(out, GoalSummary{
			Index:    index,
			File:     name,
			Status:   g.Status,
			Distance: g.DistanceTravelled,
			Samples:  len(g.Path),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *Store) readJSON(name string, v any) error {
	return ReadJSON(s.fs, filepath.Join(s.dir, name), v)
}

// ReadJSON decodes the JSON file at path into v. A missing file yields
// ErrNotFound.
func ReadJSON(fsys fsutil.FileSystem, path string, v any) error {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
