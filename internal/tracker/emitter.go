package tracker

// GoalRecord is produced once per finished goal.
type GoalRecord struct {
	Index    int
	Path     []Position
	Distance float64
	Outcome  Outcome
}

// Emitter persists what the core produces. Calls are fire-and-forget:
// implementations handle (and log) their own failures.
type Emitter interface {
	// EmitDistanceSnapshot is called once per accepted pose with the new
	// cumulative distance.
	EmitDistanceSnapshot(total float64)
	// EmitGoalRecord is called once per terminal goal transition.
	EmitGoalRecord(rec GoalRecord)
}

// NopEmitter discards everything.
type NopEmitter struct{}

func (NopEmitter) EmitDistanceSnapshot(float64) {}
func (NopEmitter) EmitGoalRecord(GoalRecord)    {}
