// Package messages decodes the line-oriented JSON events delivered on the
// inbound serial stream: odometry poses and goal-status arrays.
package messages

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/banshee-data/motion.report/internal/tracker"
)

// Kind identifies the type of an inbound line.
type Kind int

const (
	KindUnknown Kind = iota
	KindPose
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindPose:
		return "pose"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

var (
	// ErrUnknownMessage is returned for lines that are neither a pose nor a
	// goal-status update.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrMissingPosition is returned for pose messages without a position.
	ErrMissingPosition = errors.New("pose message has no position")
	// ErrMissingStatusList is returned for status messages without a
	// status_list field.
	ErrMissingStatusList = errors.New("status message has no status_list")
)

// Point is a 3D point as carried on the wire.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Odometry is the subset of an odometry message the tracker consumes.
// Other fields (header, orientation, twist, covariances) are ignored.
type Odometry struct {
	Pose struct {
		Pose struct {
			Position *Point `json:"position"`
		} `json:"pose"`
	} `json:"pose"`
}

// GoalStatus is one entry of a goal-status update.
type GoalStatus struct {
	GoalID string `json:"goal_id,omitempty"`
	Status int8   `json:"status"`
}

// GoalStatusArray is a goal-status update. Entries are ordered oldest
// first.
type GoalStatusArray struct {
	StatusList *[]GoalStatus `json:"status_list"`
}

// Codes returns the status codes of every entry, in order.
func (a GoalStatusArray) Codes() []tracker.StatusCode {
	if a.StatusList == nil {
		return nil
	}
	codes := make([]tracker.StatusCode, len(*a.StatusList))
	for i, s := range *a.StatusList {
		codes[i] = tracker.StatusCode(s.Status)
	}
	return codes
}

// Latest returns the status code of the most recent entry.
func (a GoalStatusArray) Latest() (tracker.StatusCode, bool) {
	if a.StatusList == nil || len(*a.StatusList) == 0 {
		return 0, false
	}
	list := *a.StatusList
	return tracker.StatusCode(list[len(list)-1].Status), true
}

// Message is one decoded inbound line.
type Message struct {
	Kind   Kind
	Pose   tracker.Position
	Status GoalStatusArray
}

// Classify inspects a line and returns the message kind it most likely
// carries. The check is conservative; Decode does the real validation.
func Classify(line string) Kind {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return KindUnknown
	}
	if strings.Contains(line, `"status_list"`) {
		return KindStatus
	}
	if strings.Contains(line, `"pose"`) {
		return KindPose
	}
	return KindUnknown
}

// Decode parses one inbound line.
func Decode(line string) (Message, error) {
	kind := Classify(line)
	switch kind {
	case KindPose:
		var odom Odometry
		if err := json.Unmarshal([]byte(line), &odom); err != nil {
			return Message{}, fmt.Errorf("failed to decode pose: %w", err)
		}
		p := odom.Pose.Pose.Position
		if p == nil {
			return Message{}, ErrMissingPosition
		}
		return Message{Kind: KindPose, Pose: tracker.NewPosition(p.X, p.Y, p.Z)}, nil

	case KindStatus:
		var arr GoalStatusArray
		if err := json.Unmarshal([]byte(line), &arr); err != nil {
			return Message{}, fmt.Errorf("failed to decode goal status: %w", err)
		}
		if arr.StatusList == nil {
			return Message{}, ErrMissingStatusList
		}
		return Message{Kind: KindStatus, Status: arr}, nil

	default:
		return Message{}, fmt.Errorf("%w: %.40q", ErrUnknownMessage, line)
	}
}

// EncodePose renders a pose as an inbound line. Used by fixtures and tests.
func EncodePose(p tracker.Position) string {
	return fmt.Sprintf(`{"pose":{"pose":{"position":{"x":%g,"y":%g,"z":%g}}}}`, p.X, p.Y, p.Z)
}

// EncodeStatus renders a goal-status update as an inbound line.
func EncodeStatus(codes ...tracker.StatusCode) string {
	list := make([]GoalStatus, len(codes))
	for i, c := range codes {
		list[i] = GoalStatus{GoalID: fmt.Sprintf("goal-%d", i), Status: int8(c)}
	}
	data, _ := json.Marshal(GoalStatusArray{StatusList: &list})
	return string(data)
}
