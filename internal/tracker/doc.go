// Package tracker owns the stateful core of motion.report.
//
// Responsibilities: cumulative distance from a pose stream (with noise
// rejection), the goal lifecycle driven by goal-status codes, and periodic
// path sampling while a goal is active.
// Key types: Tracker, PositionTracker, GoalStateMachine, PathRecorder,
// GoalRecord.
//
// The core is single-threaded and non-reentrant: OnPose, OnGoalStatus and
// OnTick must be called from one goroutine at a time. It performs no I/O of
// its own; persistence goes through the Emitter interface.
package tracker
