package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/pathplot"
	"github.com/banshee-data/motion.report/internal/records"
	"github.com/banshee-data/motion.report/internal/tracker"
	"github.com/banshee-data/motion.report/internal/units"
)

// GoalResponse is the body of GET /api/goals/{index}. It carries every
// field of the persisted record, in metres.
type GoalResponse struct {
	Index int    `json:"index"`
	File  string `json:"file"`
	records.GoalFile
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	unit, err := s.requestUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	goals, err := s.store.ListGoals()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	for i := range goals {
		goals[i].Distance = units.ConvertDistance(goals[i].Distance, unit)
	}
	httputil.WriteJSONOK(w, goals)
}

// handleGoalByIndex routes /api/goals/{index}[/chart|/plot.png].
func (s *Server) handleGoalByIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	remainder := strings.TrimPrefix(r.URL.Path, "/api/goals/")
	indexStr, subPath, _ := strings.Cut(remainder, "/")
	if indexStr == "" {
		httputil.BadRequest(w, "missing goal index")
		return
	}
	index, err := strconv.Atoi(indexStr)
	// Index 0 holds an outcome reported before any goal started.
	if err != nil || index < 0 {
		httputil.BadRequest(w, fmt.Sprintf("invalid goal index %q", indexStr))
		return
	}

	g, err := s.store.LoadGoal(index)
	if errors.Is(err, records.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("goal %d not found", index))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	switch subPath {
	case "":
		httputil.WriteJSONOK(w, GoalResponse{
			Index:    index,
			File:     records.GoalFileName(index, s.store.Stamp()),
			GoalFile: g,
		})
	case "chart":
		s.goalChart(w, index, g)
	case "plot.png", "plot.svg":
		s.goalPlot(w, index, g, strings.TrimPrefix(subPath, "plot."))
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown goal resource %q", subPath))
	}
}

// cumulative returns the along-path distance at each sample.
func cumulative(path []tracker.Position) []float64 {
	out := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		out[i] = out[i-1] + path[i-1].DistanceTo(path[i])
	}
	return out
}

func (s *Server) goalChart(w http.ResponseWriter, index int, g records.GoalFile) {
	path := g.Positions()
	subtitle := fmt.Sprintf("%s, distance %.3f m, %d samples", g.Status, g.DistanceTravelled, len(path))

	xy := make([]opts.LineData, len(path))
	along := make([]opts.LineData, len(path))
	samples := make([]int, len(path))
	for i, d := range cumulative(path) {
		xy[i] = opts.LineData{Value: []interface{}{path[i].X, path[i].Y}}
		along[i] = opts.LineData{Value: d}
		samples[i] = i
	}

	track := charts.NewLine()
	track.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: fmt.Sprintf("Goal %d", index), Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Goal %d path", index), Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	track.AddSeries("path", xy, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	progress := charts.NewLine()
	progress.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance along sampled path"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m"}),
	)
	progress.SetXAxis(samples).AddSeries("distance", along)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("Goal %d", index)
	page.AddCharts(track, progress)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteBody(w, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) goalPlot(w http.ResponseWriter, index int, g records.GoalFile, format string) {
	var buf bytes.Buffer
	err := pathplot.Render(&buf, g.Positions(), pathplot.Options{
		Title:  fmt.Sprintf("Goal %d (%s, %.2f m)", index, g.Status, g.DistanceTravelled),
		Format: format,
	})
	if errors.Is(err, pathplot.ErrEmptyPath) {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("goal %d has no path samples", index))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteBody(w, pathplot.ContentType(format), buf.Bytes())
}
