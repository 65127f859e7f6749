package api

import (
	"net/http"
	"time"

	"github.com/banshee-data/motion.report/internal/dispatch"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/records"
	"github.com/banshee-data/motion.report/internal/serialmux"
	"github.com/banshee-data/motion.report/internal/tracker"
	"github.com/banshee-data/motion.report/internal/units"
	"github.com/banshee-data/motion.report/internal/version"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version    version.Info `json:"version"`
	RunID      string       `json:"run_id"`
	Stamp      string       `json:"stamp"`
	StartedAt  time.Time    `json:"started_at"`
	LastLineAt *time.Time   `json:"last_line_at,omitempty"`
	Running    bool         `json:"running"`
	Units      string       `json:"units"`

	Position          [3]float64 `json:"position"`
	Initialized       bool       `json:"initialized"`
	DistanceTravelled float64    `json:"distance_travelled"`

	GoalStatus   string  `json:"goal_status"`
	GoalIndex    int     `json:"goal_index"`
	GoalDistance float64 `json:"goal_distance"` // travelled since the current goal started
	PathSamples  int     `json:"path_samples"`

	RejectedPoses  int `json:"rejected_poses"`
	IgnoredUpdates int `json:"ignored_updates"`
	UnknownCodes   int `json:"unknown_codes"`

	Counters dispatch.Counters `json:"counters"`
	Emitter  *records.Stats    `json:"emitter,omitempty"`
	Serial   *serialmux.Stats  `json:"serial,omitempty"`
}

func (s *Server) status(unit string) StatusResponse {
	snap := s.loop.Snapshot()
	st := snap.State

	resp := StatusResponse{
		Version:           version.Get(),
		RunID:             snap.RunID,
		Stamp:             s.store.Stamp(),
		StartedAt:         snap.StartedAt,
		Running:           snap.Running,
		Units:             unit,
		Position:          st.Position.Array(),
		Initialized:       st.Initialized,
		DistanceTravelled: units.ConvertDistance(st.Distance, unit),
		GoalStatus:        st.Status.String(),
		GoalIndex:         st.GoalIndex,
		PathSamples:       st.PathSamples,
		RejectedPoses:     st.RejectedPoses,
		IgnoredUpdates:    st.IgnoredUpdates,
		UnknownCodes:      st.UnknownCodes,
		Counters:          snap.Counters,
	}
	if st.Status == tracker.Moving {
		resp.GoalDistance = units.ConvertDistance(st.Distance-st.GoalStart, unit)
	}
	if !snap.LastLineAt.IsZero() {
		t := snap.LastLineAt
		resp.LastLineAt = &t
	}
	if s.emitter != nil {
		es := s.emitter.Stats()
		resp.Emitter = &es
	}
	if s.m != nil {
		ms := s.m.Stats()
		resp.Serial = &ms
	}
	return resp
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, s.status(unit))
}
