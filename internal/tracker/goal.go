package tracker

// GoalStatus is the lifecycle state of the current navigation goal.
type GoalStatus int

const (
	Idle GoalStatus = iota
	Moving
	Reached   // transient; the machine returns to Idle immediately
	Preempted // transient; the machine returns to Idle immediately
)

func (s GoalStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Reached:
		return "reached"
	case Preempted:
		return "preempted"
	default:
		return "unknown"
	}
}

// Signal is the classification of an incoming status code.
type Signal int

const (
	SignalOther Signal = iota // anything that is not a terminal outcome
	SignalReached
	SignalPreempted
)

// Outcome is the persisted result tag of a finished goal.
type Outcome string

const (
	OutcomeReached   Outcome = "reached"
	OutcomePreempted Outcome = "preempted"
)

// Transition describes what one status signal did to the machine.
type Transition struct {
	From    GoalStatus
	To      GoalStatus
	Started bool    // Idle -> Moving opened a new goal
	Outcome Outcome // set on terminal transitions only

	Index    int     // goal index the transition applies to
	Distance float64 // distance travelled during the goal (terminal only)
}

// Terminal reports whether the transition closed a goal.
func (t Transition) Terminal() bool { return t.Outcome != "" }

// GoalStateMachine tracks the goal lifecycle.
//
// Terminal signals are honoured from any state so an outcome is never lost
// to a missed intermediate transition. Only Idle -> Moving opens a goal, so
// repeated moving signals cannot start duplicates.
type GoalStateMachine struct {
	status     GoalStatus
	index      int
	startTotal float64
}

// NewGoalStateMachine returns a machine in the Idle state with no goals.
func NewGoalStateMachine() *GoalStateMachine {
	return &GoalStateMachine{status: Idle}
}

// Status returns the current (non-transient) state.
func (m *GoalStateMachine) Status() GoalStatus { return m.status }

// Index returns the index of the most recently started goal (0 if none).
func (m *GoalStateMachine) Index() int { return m.index }

// Active reports whether a goal is being followed.
func (m *GoalStateMachine) Active() bool { return m.status == Moving }

// StartTotal returns the accumulator value captured when the current goal
// started.
func (m *GoalStateMachine) StartTotal() float64 { return m.startTotal }

// Apply feeds one signal. total is the distance accumulator at the moment
// the signal arrives.
func (m *GoalStateMachine) Apply(sig Signal, total float64) Transition {
	from := m.status

	switch sig {
	case SignalReached, SignalPreempted:
		outcome := OutcomeReached
		if sig == SignalPreempted {
			outcome = OutcomePreempted
		}
		m.status = Idle
		return Transition{
			From:     from,
			To:       Idle,
			Outcome:  outcome,
			Index:    m.index,
			Distance: total - m.startTotal,
		}
	}

	if m.status == Idle {
		m.status = Moving
		m.startTotal = total
		m.index++
		return Transition{From: from, To: Moving, Started: true, Index: m.index}
	}

	return Transition{From: from, To: m.status, Index: m.index}
}
