package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleScanChart renders the latest scan as an interactive scatter, x
// forward and y left, coloured by range.
func (s *Server) handleScanChart(w http.ResponseWriter, r *http.Request) {
	ranges, stamp, ok := s.latestScan()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no scan published yet")
		return
	}
	g := s.src.Scan.Geometry()
	pts := project(ranges, g, s.src.Scan.Policy())

	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		// Plot with forward up: screen x is -y, screen y is x.
		data = append(data, opts.ScatterData{Value: []interface{}{-p.Y, p.X, p.Range, p.Slot}})
	}
	pad := g.RangeMax * 1.05

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Range Scan", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Range Scan", Subtitle: fmt.Sprintf("topic=%s stamp=%d.%09d returns=%d/%d", s.src.Scan.Topic(), stamp.Sec, stamp.Nanosec, len(pts), len(ranges))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "right (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "forward (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(g.RangeMin),
			Max:        float32(g.RangeMax),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#fde725", "#35b779", "#31688e", "#440154"}},
		}),
	)
	scatter.AddSeries("returns", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// scanPlot draws the returns of one scan, forward up.
func scanPlot(pts []point, rangeMax float64, title string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "right (m)"
	p.Y.Label.Text = "forward (m)"
	p.X.Min, p.X.Max = -rangeMax, rangeMax
	p.Y.Min, p.Y.Max = -rangeMax, rangeMax
	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, 0, len(pts))
	for _, pt := range pts {
		xys = append(xys, plotter.XY{X: -pt.Y, Y: pt.X})
	}
	if len(xys) > 0 {
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(sc)
	}

	origin, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return nil, err
	}
	origin.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
	origin.GlyphStyle.Radius = vg.Points(3)
	origin.GlyphStyle.Shape = draw.TriangleGlyph{}
	p.Add(origin)
	return p, nil
}

// handleScanPNG renders the latest scan as a PNG.
func (s *Server) handleScanPNG(w http.ResponseWriter, r *http.Request) {
	ranges, _, ok := s.latestScan()
	if !ok {
		s.writeJSONError(w, http.StatusNotFound, "no scan published yet")
		return
	}
	g := s.src.Scan.Geometry()
	pts := project(ranges, g, s.src.Scan.Policy())
	p, err := scanPlot(pts, g.RangeMax, fmt.Sprintf("%s (%d returns)", s.src.Scan.Topic(), len(pts)))
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build plot: %v", err))
		return
	}
	wt, err := p.WriterTo(8*vg.Inch, 8*vg.Inch, "png")
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
