// Package pathplot renders recorded goal paths as top-down images.
package pathplot

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/motion.report/internal/tracker"
)

// ErrEmptyPath is returned when there is nothing to draw.
var ErrEmptyPath = errors.New("path has no samples")

var (
	pathColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	startColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	endColor   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Options controls image size, format and labelling.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
	Format string // "png" or "svg"
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 6 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 6 * vg.Inch
	}
	if o.Format == "" {
		o.Format = "png"
	}
	return o
}

// XYs projects path onto the ground plane.
func XYs(path []tracker.Position) plotter.XYs {
	pts := make(plotter.XYs, len(path))
	for i, p := range path {
		pts[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return pts
}

// New builds the plot for path: the sampled track as a line with markers,
// plus distinct start and end glyphs.
func New(path []tracker.Position, title string) (*plot.Plot, error) {
	if len(path) == 0 {
		return nil, ErrEmptyPath
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	pts := XYs(path)
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to build path line: %w", err)
	}
	line.Color = pathColor
	line.Width = vg.Points(1.5)
	points.Color = pathColor
	points.Radius = vg.Points(2)
	p.Add(line, points)

	start, err := plotter.NewScatter(pts[:1])
	if err != nil {
		return nil, err
	}
	start.GlyphStyle = draw.GlyphStyle{Color: startColor, Radius: vg.Points(5), Shape: draw.CircleGlyph{}}
	end, err := plotter.NewScatter(pts[len(pts)-1:])
	if err != nil {
		return nil, err
	}
	end.GlyphStyle = draw.GlyphStyle{Color: endColor, Radius: vg.Points(5), Shape: draw.TriangleGlyph{}}
	p.Add(start, end)

	p.Legend.Add("path", line, points)
	p.Legend.Add("start", start)
	p.Legend.Add("end", end)
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// Render writes an image of path to w.
func Render(w io.Writer, path []tracker.Position, opts Options) error {
	opts = opts.withDefaults()
	if opts.Format != "png" && opts.Format != "svg" {
		return fmt.Errorf("unsupported image format %q", opts.Format)
	}

	p, err := New(path, opts.Title)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, opts.Format)
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

// ContentType returns the MIME type for an image format.
func ContentType(format string) string {
	if format == "svg" {
		return "image/svg+xml"
	}
	return "image/png"
}
