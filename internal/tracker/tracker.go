package tracker

// State is a point-in-time copy of the core's state.
type State struct {
	Position    Position
	Initialized bool
	Distance    float64
	Status      GoalStatus
	GoalIndex   int
	GoalStart   float64 // accumulator when the current goal started
	PathSamples int

	RejectedPoses  int
	IgnoredUpdates int // status updates with no entries
	UnknownCodes   int
}

// Tracker ties the position tracker, goal state machine and path recorder
// together behind three entry points.
type Tracker struct {
	cfg     Config
	emitter Emitter

	position *PositionTracker
	goals    *GoalStateMachine
	path     *PathRecorder

	ignoredUpdates int
	unknownCodes   int
}

// New creates a Tracker. A nil emitter discards all output.
func New(cfg Config, emitter Emitter) *Tracker {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Tracker{
		cfg:      cfg,
		emitter:  emitter,
		position: NewPositionTracker(cfg.NoiseThreshold),
		goals:    NewGoalStateMachine(),
		path:     NewPathRecorder(),
	}
}

// Config returns the constants the tracker was built with.
func (t *Tracker) Config() Config { return t.cfg }

// OnPose handles one pose reading.
func (t *Tracker) OnPose(p Position) {
	if _, ok := t.position.Update(p); !ok {
		return
	}
	total := t.position.Total()
	t.emitter.EmitDistanceSnapshot(total)
	tracef("distance travelled %.4f at %v", total, p)
}

// OnGoalStatus handles one status update. Only the last entry is
// consulted; an empty update is ignored.
func (t *Tracker) OnGoalStatus(codes []StatusCode) {
	if len(codes) == 0 {
		t.ignoredUpdates++
		opsf("ignored goal status update with no entries")
		return
	}

	code := codes[len(codes)-1]
	sig, known := t.cfg.Signal(code)
	if !known {
		t.unknownCodes++
		diagf("unrecognised goal status code %d treated as non-terminal", code)
	}

	tr := t.goals.Apply(sig, t.position.Total())
	switch {
	case tr.Terminal():
		rec := GoalRecord{
			Index:    tr.Index,
			Path:     t.path.Flush(),
			Distance: tr.Distance,
			Outcome:  tr.Outcome,
		}
		t.emitter.EmitGoalRecord(rec)
		diagf("goal %d %s: distance %.4f, %d path samples", rec.Index, rec.Outcome, rec.Distance, len(rec.Path))
	case tr.Started:
		diagf("following new goal %d from distance %.4f", tr.Index, t.goals.StartTotal())
	}
}

// OnTick handles one periodic tick.
func (t *Tracker) OnTick() {
	p := t.position.Current()
	if t.path.Sample(t.goals.Active(), p) {
		tracef("recorded %v to goal %d path (%d samples)", p, t.goals.Index(), t.path.Len())
	}
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	return State{
		Position:       t.position.Current(),
		Initialized:    t.position.Initialized(),
		Distance:       t.position.Total(),
		Status:         t.goals.Status(),
		GoalIndex:      t.goals.Index(),
		GoalStart:      t.goals.StartTotal(),
		PathSamples:    t.path.Len(),
		RejectedPoses:  t.position.Rejected(),
		IgnoredUpdates: t.ignoredUpdates,
		UnknownCodes:   t.unknownCodes,
	}
}
