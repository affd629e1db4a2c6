// Package report renders an analysis window as an image.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/kintad/PWV3/pkg/analysis"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrEmpty is returned for a result without filtered samples.
var ErrEmpty = errors.New("report: nothing to plot")

var (
	colorCh1 = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorCh2 = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// Options controls the rendered image.
type Options struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

// DefaultOptions returns a 14x6 inch plot.
func DefaultOptions() Options {
	return Options{
		Title:  "Pulse transit",
		Width:  14 * vg.Inch,
		Height: 6 * vg.Inch,
	}
}

// Plot builds the plot of both filtered channels with their fiducials
// marked and the PTT/PWV summary in the title.
func Plot(res analysis.Result, opts Options) (*plot.Plot, error) {
	if len(res.Times) == 0 || len(res.Filtered1) == 0 {
		return nil, ErrEmpty
	}

	p := plot.New()
	p.Title.Text = title(opts.Title, res)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Filtered amplitude"
	p.Add(plotter.NewGrid())

	fid1, fid2 := res.Fiducials()
	channels := []struct {
		name   string
		values []float64
		fid    []int
		color  color.Color
		shape  draw.GlyphDrawer
	}{
		{"Node 1", res.Filtered1, fid1, colorCh1, draw.CircleGlyph{}},
		{"Node 2", res.Filtered2, fid2, colorCh2, draw.TriangleGlyph{}},
	}

	for _, ch := range channels {
		line, err := plotter.NewLine(series(res.Times, ch.values))
		if err != nil {
			return nil, fmt.Errorf("failed to build %s line: %w", ch.name, err)
		}
		line.Color = ch.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(ch.name, line)

		marks := markers(res.Times, ch.values, ch.fid)
		if len(marks) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(marks)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s markers: %w", ch.name, err)
		}
		scatter.GlyphStyle.Color = ch.color
		scatter.GlyphStyle.Shape = ch.shape
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add(ch.name+" "+string(res.Mode), scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WritePNG renders res to a PNG file at path.
func WritePNG(path string, res analysis.Result, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := Write(f, res, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write renders res as PNG to w.
func Write(w io.Writer, res analysis.Result, opts Options) error {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}

	p, err := Plot(res, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return nil
}

func title(prefix string, res analysis.Result) string {
	st := res.PTT.Stats
	if st == nil {
		return fmt.Sprintf("%s (%s): no valid pairs", prefix, res.Mode)
	}
	return fmt.Sprintf("%s (%s): PTT %.1f ± %.1f ms, PWV %.2f ± %.2f m/s, %d pairs",
		prefix, res.Mode, st.PTTMeanMs, st.PTTStdMs, st.PWVMean, st.PWVStd, res.PTT.Pairs)
}

func series(times, values []float64) plotter.XYs {
	n := min(len(times), len(values))
	xys := make(plotter.XYs, n)
	for i := 0; i < n; i++ {
		xys[i] = plotter.XY{X: times[i], Y: values[i]}
	}
	return xys
}

func markers(times, values []float64, idx []int) plotter.XYs {
	xys := make(plotter.XYs, 0, len(idx))
	for _, i := range idx {
		if i < 0 || i >= len(times) || i >= len(values) {
			continue
		}
		xys = append(xys, plotter.XY{X: times[i], Y: values[i]})
	}
	return xys
}
