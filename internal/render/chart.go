package render

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/result"
	chart "github.com/wcharczuk/go-chart/v2"
)

// Chart dimensions in pixels.
const (
	ChartWidth  = 960
	ChartHeight = 400
)

// ErrNoSeries is the cause when a view has no numeric PnL points.
var ErrNoSeries = errors.New("no numeric PnL points to chart")

// Chart writes the daily PnL series of v as a PNG.
func Chart(w io.Writer, v result.View) error {
	xs := make([]time.Time, 0, len(v.Series)+1)
	ys := make([]float64, 0, len(v.Series)+1)
	for _, p := range v.Series {
		if math.IsNaN(p.PnL) || math.IsInf(p.PnL, 0) {
			continue
		}
		xs = append(xs, p.Date)
		ys = append(ys, p.PnL)
	}
	if len(xs) == 0 {
		return core.WrapError(core.ErrRenderFailed, ErrNoSeries)
	}
	// a single point has no x extent
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(24*time.Hour))
		ys = append(ys, ys[0])
	}

	ch := chart.Chart{
		Title:      "Daily PnL",
		Width:      ChartWidth,
		Height:     ChartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat(result.DateLayoutISO),
		},
		YAxis: chart.YAxis{
			Name:           "PnL ($)",
			Range:          yRange(ys),
			ValueFormatter: currencyTick,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "PnL",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: chart.ColorBlue,
					StrokeWidth: 2,
					DotColor:    chart.ColorBlue,
					DotWidth:    3,
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return core.WrapError(core.ErrRenderFailed, err)
	}
	return nil
}

// yRange pads a flat series so the axis keeps a non-zero extent.
func yRange(ys []float64) *chart.ContinuousRange {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	if hi == lo {
		return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	pad := (hi - lo) * 0.05
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

func currencyTick(v interface{}) string {
	if f, ok := v.(float64); ok {
		return result.FormatCurrency(f)
	}
	return ""
}
