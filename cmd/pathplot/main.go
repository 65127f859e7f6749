// Command pathplot renders a goal record as a PNG or SVG image. The record
// is read from a file written by motion or fetched from a running instance.
//
//	pathplot -file robot_goal_3_2026-10-18_090507.json -o goal3.png
//	pathplot -url http://localhost:8090 -goal 3 -format svg -o goal3.svg
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/motion.report/internal/fsutil"
	"github.com/banshee-data/motion.report/internal/httputil"
	"github.com/banshee-data/motion.report/internal/pathplot"
	"github.com/banshee-data/motion.report/internal/records"
	"github.com/banshee-data/motion.report/internal/security"
)

type options struct {
	file   string
	url    string
	goal   int
	out    string
	format string
	title  string
	size   float64 // inches
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("pathplot", flag.ContinueOnError)
	fs.StringVar(&o.file, "file", "", "Goal record JSON file")
	fs.StringVar(&o.url, "url", "", "Base URL of a running motion service")
	fs.IntVar(&o.goal, "goal", -1, "Goal index to fetch with -url")
	fs.StringVar(&o.out, "o", "", "Output image path (default: stdout)")
	fs.StringVar(&o.format, "format", "", "Image format: png or svg (default from -o extension, else png)")
	fs.StringVar(&o.title, "title", "", "Plot title")
	fs.Float64Var(&o.size, "size", 6, "Image width and height in inches")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if (o.file == "") == (o.url == "") {
		return o, fmt.Errorf("exactly one of -file or -url is required")
	}
	if o.url != "" && o.goal < 0 {
		return o, fmt.Errorf("-goal is required when using -url")
	}
	if o.format == "" {
		o.format = "png"
		if strings.EqualFold(filepath.Ext(o.out), ".svg") {
			o.format = "svg"
		}
	}
	if o.size <= 0 {
		return o, fmt.Errorf("-size must be positive")
	}
	return o, nil
}

func load(ctx context.Context, o options, client httputil.HTTPClient) (records.GoalFile, string, error) {
	var g records.GoalFile
	if o.file != "" {
		if err := records.ReadJSON(fsutil.OSFileSystem{}, o.file, &g); err != nil {
			return g, "", err
		}
		title := strings.TrimSuffix(filepath.Base(o.file), filepath.Ext(o.file))
		if idx, _, err := records.ParseGoalFileName(filepath.Base(o.file)); err == nil {
			title = fmt.Sprintf("Goal %d", idx)
		}
		return g, title, nil
	}

	url := fmt.Sprintf("%s/api/goals/%d", strings.TrimRight(o.url, "/"), o.goal)
	if err := httputil.GetJSON(ctx, client, url, &g); err != nil {
		return g, "", err
	}
	return g, fmt.Sprintf("Goal %d", o.goal), nil
}

func run(ctx context.Context, args []string, stdout io.Writer, client httputil.HTTPClient) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	g, title, err := load(ctx, o, client)
	if err != nil {
		return err
	}
	if o.title != "" {
		title = o.title
	} else {
		title = fmt.Sprintf("%s (%s, %.2f m)", title, g.Status, g.DistanceTravelled)
	}

	w := stdout
	if o.out != "" {
		if err := security.ValidateExportPath(o.out); err != nil {
			return fmt.Errorf("refusing to write %s: %w", o.out, err)
		}
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", o.out, err)
		}
		defer f.Close()
		w = f
	}

	size := vg.Length(o.size) * vg.Inch
	return pathplot.Render(w, g.Positions(), pathplot.Options{
		Title:  title,
		Width:  size,
		Height: size,
		Format: o.format,
	})
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 10 * time.Second}
	if err := run(ctx, os.Args[1:], os.Stdout, client); err != nil {
		log.Fatalf("pathplot: %v", err)
	}
}
