package tracker

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Position is a 3D point. It is a value type; the tracker replaces its
// stored position wholesale rather than mutating it.
type Position r3.Vec

// NewPosition builds a Position from its coordinates.
func NewPosition(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

// DistanceTo returns the Euclidean distance between p and q.
func (p Position) DistanceTo(q Position) float64 {
	return r3.Norm(r3.Sub(r3.Vec(p), r3.Vec(q)))
}

// IsFinite reports whether every coordinate is a finite number.
func (p Position) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// Array returns the coordinates as [x, y, z].
func (p Position) Array() [3]float64 {
	return [3]float64{p.X, p.Y, p.Z}
}

func (p Position) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.X, p.Y, p.Z)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PositionTracker keeps the current position and the cumulative distance
// travelled. The accumulator never decreases.
type PositionTracker struct {
	threshold float64

	current     Position
	total       float64
	initialized bool
	rejected    int
}

// NewPositionTracker creates a tracker that discards changes of at most
// threshold distance units.
func NewPositionTracker(threshold float64) *PositionTracker {
	return &PositionTracker{threshold: threshold}
}

// Update feeds one pose reading. It returns the distance added to the
// accumulator and whether the reading was accepted.
//
// The first finite reading only initialises the current position. Later
// readings within the noise threshold leave all state untouched.
// Non-finite readings are rejected and counted.
func (t *PositionTracker) Update(p Position) (float64, bool) {
	if !p.IsFinite() {
		t.rejected++
		opsf("rejected non-finite pose %v (total rejected: %d)", p, t.rejected)
		return 0, false
	}

	if !t.initialized {
		t.initialized = true
		t.current = p
		diagf("initial position %v", p)
		return 0, false
	}

	d := t.current.DistanceTo(p)
	if d <= t.threshold {
		return 0, false
	}
	total := t.total + d
	if !isFinite(d) || !isFinite(total) {
		t.rejected++
		opsf("rejected pose %v: distance from %v overflows", p, t.current)
		return 0, false
	}

	t.current = p
	t.total = total
	return d, true
}

// Current returns the stored position. Before the first reading this is
// the origin.
func (t *PositionTracker) Current() Position { return t.current }

// Total returns the cumulative distance travelled.
func (t *PositionTracker) Total() float64 { return t.total }

// Initialized reports whether a first reading has been received.
func (t *PositionTracker) Initialized() bool { return t.initialized }

// Rejected returns how many readings were discarded as non-finite or
// overflowing.
func (t *PositionTracker) Rejected() int { return t.rejected }
