// Package report renders decode sessions and calibration sweeps as PNG
// plots and HTML chart pages.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/ghostframe/internal/calibrate"
	"github.com/banshee-data/ghostframe/internal/fsutil"
	"github.com/banshee-data/ghostframe/internal/pipeline"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("report: no data to plot")

var (
	curveColor     = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	thresholdColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	detectedColor  = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// PlotCompleteness draws completeness against frames scanned, with the
// level needed for reconstruction marked.
func PlotCompleteness(progress []pipeline.Progress, maxMissingRatio float64) (*plot.Plot, error) {
	if len(progress) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Fragment recovery"
	p.X.Label.Text = "Frames scanned"
	p.Y.Label.Text = "Completeness (%)"
	p.Y.Min, p.Y.Max = 0, 100

	pts := make(plotter.XYs, len(progress))
	for i, pr := range progress {
		pts[i] = plotter.XY{X: float64(pr.FramesScanned), Y: pr.Completeness * 100}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("completeness line: %w", err)
	}
	line.Color = curveColor
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("completeness", line)

	need := (1 - maxMissingRatio) * 100
	last := pts[len(pts)-1].X
	threshold, err := plotter.NewLine(plotter.XYs{{X: 0, Y: need}, {X: last, Y: need}})
	if err != nil {
		return nil, fmt.Errorf("threshold line: %w", err)
	}
	threshold.Color = thresholdColor
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add(fmt.Sprintf("reconstructable (%.0f%%)", need), threshold)

	p.Legend.Top = true
	p.Legend.Left = false
	return p, nil
}

// PlotSweep draws the maximum pixel delta per opacity, marks the opacities
// that were recovered and, when positive, the recommended opacity.
func PlotSweep(points []calibrate.Point, recommended float64) (*plot.Plot, error) {
	if len(points) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = "Opacity sweep"
	p.X.Label.Text = "Opacity"
	p.Y.Label.Text = "Max pixel delta"

	all := make(plotter.XYs, 0, len(points))
	var found plotter.XYs
	peak := 0.0
	for _, pt := range points {
		xy := plotter.XY{X: pt.Opacity, Y: pt.MaxDelta}
		all = append(all, xy)
		if pt.Detected {
			found = append(found, xy)
		}
		peak = max(peak, pt.MaxDelta)
	}

	line, err := plotter.NewLine(all)
	if err != nil {
		return nil, fmt.Errorf("delta line: %w", err)
	}
	line.Color = curveColor
	p.Add(line)
	p.Legend.Add("max delta", line)

	if len(found) > 0 {
		sc, err := plotter.NewScatter(found)
		if err != nil {
			return nil, fmt.Errorf("detected points: %w", err)
		}
		sc.Color = detectedColor
		sc.Radius = vg.Points(4)
		p.Add(sc)
		p.Legend.Add("detected", sc)
	}

	if recommended > 0 {
		rec, err := plotter.NewLine(plotter.XYs{{X: recommended, Y: 0}, {X: recommended, Y: peak}})
		if err != nil {
			return nil, fmt.Errorf("recommendation line: %w", err)
		}
		rec.Color = thresholdColor
		rec.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(rec)
		p.Legend.Add(fmt.Sprintf("recommended %.2f", recommended), rec)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// SavePNG renders p to path on fs.
func SavePNG(fs fsutil.FileSystem, path string, p *plot.Plot) error {
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}

// WriteSessionReport writes completeness.png and scan_report.html for an
// extraction into dir and returns the paths written.
func WriteSessionReport(fs fsutil.FileSystem, dir string, res *pipeline.ExtractResult, maxMissingRatio float64) ([]string, error) {
	if err := fs.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, err
	}
	var written []string

	if p, err := PlotCompleteness(res.Stats.Progress, maxMissingRatio); err == nil {
		path := filepath.Join(dir, "completeness.png")
		if err := SavePNG(fs, path, p); err != nil {
			return written, err
		}
		written = append(written, path)
	} else if !errors.Is(err, ErrNoData) {
		return written, err
	}

	path := filepath.Join(dir, "scan_report.html")
	w, err := fs.Create(path)
	if err != nil {
		return written, err
	}
	if err := RenderScanReport(w, res); err != nil {
		w.Close()
		return written, err
	}
	if err := w.Close(); err != nil {
		return written, err
	}
	return append(written, path), nil
}
