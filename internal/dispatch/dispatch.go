// Package dispatch feeds inbound lines and periodic ticks into a tracker
// from a single goroutine and publishes snapshots of its state.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/motion.report/internal/messages"
	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/timeutil"
	"github.com/banshee-data/motion.report/internal/tracker"
)

// Source delivers inbound lines. serialmux.SerialMuxInterface satisfies it.
// The loop takes a primary subscription so no line is dropped before it
// reaches the tracker.
type Source interface {
	SubscribePrimary() (string, chan string)
	Unsubscribe(string)
}

// Counters tallies what the loop has processed.
type Counters struct {
	Lines    uint64 `json:"lines"`
	Poses    uint64 `json:"poses"`
	Statuses uint64 `json:"statuses"`
	Ticks    uint64 `json:"ticks"`
	Rejected uint64 `json:"rejected"`
}

// Snapshot is a copy of the loop's state, safe to hand to other goroutines.
type Snapshot struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	LastLineAt time.Time     `json:"last_line_at,omitempty"`
	Running    bool          `json:"running"`
	Counters   Counters      `json:"counters"`
	State      tracker.State `json:"-"`
}

// Loop owns a tracker. Run is the only goroutine that touches it.
type Loop struct {
	tracker *tracker.Tracker
	source  Source
	clock   timeutil.Clock

	subID string
	lines chan string

	mu   sync.Mutex
	snap Snapshot
}

// New creates a loop for t reading from source. A nil clock uses the real
// clock.
func New(t *tracker.Tracker, source Source, clock timeutil.Clock) *Loop {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	l := &Loop{tracker: t, source: source, clock: clock}
	l.snap = Snapshot{
		RunID:     uuid.NewString(),
		StartedAt: clock.Now(),
		State:     t.State(),
	}
	return l
}

// RunID identifies this process's run in logs and API responses.
func (l *Loop) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap.RunID
}

// Start subscribes to the source. Call it before the source starts
// publishing so the first lines are not missed. Run calls it if needed.
func (l *Loop) Start() {
	if l.lines != nil {
		return
	}
	l.subID, l.lines = l.source.SubscribePrimary()
}

// Run processes lines and ticks until ctx is cancelled or the source closes
// its channel. A closed source returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.Start()
	lines := l.lines
	defer l.source.Unsubscribe(l.subID)

	ticker := l.clock.NewTicker(l.tracker.Config().TickPeriod)
	defer ticker.Stop()

	l.setRunning(true)
	defer l.setRunning(false)
	monitoring.Logf("dispatch: run %s started, sampling every %v", l.RunID(), l.tracker.Config().TickPeriod)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				monitoring.Logf("dispatch: source closed")
				return nil
			}
			l.handleLine(line)

		case <-ticker.C():
			l.tracker.OnTick()
			l.update(func(s *Snapshot) { s.Counters.Ticks++ })
		}
	}
}

func (l *Loop) handleLine(line string) {
	msg, err := messages.Decode(line)
	now := l.clock.Now()
	if err != nil {
		l.update(func(s *Snapshot) {
			s.Counters.Lines++
			s.Counters.Rejected++
			s.LastLineAt = now
		})
		if !errors.Is(err, messages.ErrUnknownMessage) {
			monitoring.Logf("dispatch: rejected line: %v", err)
		}
		return
	}

	switch msg.Kind {
	case messages.KindPose:
		l.tracker.OnPose(msg.Pose)
	case messages.KindStatus:
		l.tracker.OnGoalStatus(msg.Status.Codes())
	}
	l.update(func(s *Snapshot) {
		s.Counters.Lines++
		s.LastLineAt = now
		switch msg.Kind {
		case messages.KindPose:
			s.Counters.Poses++
		case messages.KindStatus:
			s.Counters.Statuses++
		}
	})
}

// update applies fn and refreshes the tracker state under the snapshot lock.
// Only the Run goroutine calls it.
func (l *Loop) update(fn func(*Snapshot)) {
	state := l.tracker.State()
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(&l.snap)
	l.snap.State = state
}

func (l *Loop) setRunning(running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap.Running = running
}

// Snapshot returns the latest published state.
func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}
