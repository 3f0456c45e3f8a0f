package report

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ghostframe/internal/pipeline"
)

// RenderScanReport writes an HTML page summarising an extraction: decodes
// per enhancement strategy, decodes per backend and packages read per frame.
func RenderScanReport(w io.Writer, res *pipeline.ExtractResult) error {
	st := res.Stats
	subtitle := fmt.Sprintf("state=%s fragments=%d frames=%d/%d", res.State, res.Total, st.FramesScanned, st.FramesTotal)

	page := components.NewPage()
	page.PageTitle = "ghostframe scan report"
	page.AddCharts(
		countBar("Decodes per strategy", subtitle, "decodes", st.Decode.ByStrategy),
		countBar("Decodes per backend", subtitle, "decodes", st.Decode.ByBackend),
		countBar("Candidates per strategy", subtitle, "candidates", st.Scan.ByStrategy),
		perFrameLine(st.PerFrame),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render scan report: %w", err)
	}
	return nil
}

func countBar(title, subtitle, series string, counts map[string]int) *charts.Bar {
	keys := slices.Sorted(maps.Keys(counts))
	data := make([]opts.BarData, len(keys))
	for i, k := range keys {
		data[i] = opts.BarData{Value: counts[k]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(keys).
		AddSeries(series, data,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

func perFrameLine(perFrame []pipeline.FrameStats) *charts.Line {
	x := make([]int, len(perFrame))
	decoded := make([]opts.LineData, len(perFrame))
	fresh := make([]opts.LineData, len(perFrame))
	for i, fs := range perFrame {
		x[i] = fs.Frame
		decoded[i] = opts.LineData{Value: fs.Decoded}
		fresh[i] = opts.LineData{Value: fs.New}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fragments per frame"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame"}),
	)
	line.SetXAxis(x).
		AddSeries("decoded", decoded).
		AddSeries("new", fresh)
	return line
}
