// Package records persists tracker output as flat JSON files, one file per
// record, namespaced by the process start stamp so runs never collide.
package records

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/motion.report/internal/tracker"
)

const (
	// StampLayout formats the process start time used in file names.
	StampLayout = "2006-01-02_150405"

	distancePrefix = "robot_distance_travelled_"
	goalPrefix     = "robot_goal_"
	fileExt        = ".json"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DistanceSnapshot is the on-disk cumulative distance record.
type DistanceSnapshot struct {
	DistanceTravelled float64 `json:"distance_travelled"`
}

// GoalFile is the on-disk record of one finished goal.
type GoalFile struct {
	Path              [][3]float64 `json:"path"`
	DistanceTravelled float64      `json:"distance_travelled"`
	Status            string       `json:"status"`
}

// NewGoalFile converts a tracker record to its on-disk form.
func NewGoalFile(rec tracker.GoalRecord) GoalFile {
	path := make([][3]float64, len(rec.Path))
	for i, p := range rec.Path {
		path[i] = p.Array()
	}
	return GoalFile{
		Path:              path,
		DistanceTravelled: rec.Distance,
		Status:            string(rec.Outcome),
	}
}

// Positions returns the recorded path as tracker positions.
func (g GoalFile) Positions() []tracker.Position {
	out := make([]tracker.Position, len(g.Path))
	for i, p := range g.Path {
		out[i] = tracker.NewPosition(p[0], p[1], p[2])
	}
	return out
}

// Stamp formats a process start time for use in file names.
func Stamp(t time.Time) string {
	return t.Format(StampLayout)
}

// DistanceFileName returns the distance snapshot file name for a run.
func DistanceFileName(stamp string) string {
	return distancePrefix + stamp + fileExt
}

// GoalFileName returns the goal record file name for a run and goal index.
func GoalFileName(index int, stamp string) string {
	return fmt.Sprintf("%s%d_%s%s", goalPrefix, index, stamp, fileExt)
}

// ParseGoalFileName extracts the goal index and stamp from a goal record
// file name.
func ParseGoalFileName(name string) (index int, stamp string, err error) {
	if !strings.HasPrefix(name, goalPrefix) || !strings.HasSuffix(name, fileExt) {
		return 0, "", fmt.Errorf("not a goal record file: %q", name)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(name, goalPrefix), fileExt)
	idx, rest, ok := strings.Cut(body, "_")
	if !ok || rest == "" {
		return 0, "", fmt.Errorf("goal record file %q has no stamp", name)
	}
	index, err = strconv.Atoi(idx)
	if err != nil {
		return 0, "", fmt.Errorf("goal record file %q: invalid index: %w", name, err)
	}
	if index < 0 {
		return 0, "", fmt.Errorf("goal record file %q: negative index", name)
	}
	return index, rest, nil
}
