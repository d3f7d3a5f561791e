package result

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/dispersion/internal/weights"
)

// WeightSource tells where the weight table came from.
type WeightSource string

const (
	SourceDefault WeightSource = "default"
	SourceServer  WeightSource = "server"
)

// Options carries display context that is not part of the response.
type Options struct {
	// Locale selects the series date layout.
	Locale string
	// Symbols is the raw symbol list that was submitted, used to label
	// positional component volatilities.
	Symbols string
}

// View is the display model for one panel render.
type View struct {
	// HasResult is false before the first successful run.
	HasResult bool

	Weights       []WeightRow
	WeightsSource WeightSource

	FinalPnL   string
	IndexVol   string
	Dispersion string

	// PnL is empty when HasPnL is false; renderers then show NoPnLData.
	PnL    []PnLRow
	HasPnL bool
	// Series holds the numeric points of PnL for charting.
	Series []Point

	ComponentVols []VolRow
	// ComponentVolsKeyed is true when the service named each volatility.
	ComponentVolsKeyed bool
}

// WeightRow is one line of the weights table.
type WeightRow struct {
	Ticker  string
	Weight  float64
	Numeric bool
	Display string
}

// PnLRow is one line of the daily PnL table.
type PnLRow struct {
	Date string
	PnL  string
}

// Point is a charted PnL observation.
type Point struct {
	Date time.Time
	PnL  float64
}

// VolRow is one component volatility line.
type VolRow struct {
	Label   string
	Display string
}

// Empty returns the view shown before any run completes: the default
// weight table and no results section.
func Empty(defaults []weights.Weight) View {
	return View{
		Weights:       defaultRows(defaults),
		WeightsSource: SourceDefault,
		FinalPnL:      Placeholder,
		IndexVol:      Placeholder,
		Dispersion:    Placeholder,
	}
}

// Reconcile builds the display model for r. A nil r yields Empty.
func Reconcile(r *Result, defaults []weights.Weight, opts Options) View {
	if r == nil {
		return Empty(defaults)
	}

	v := View{HasResult: true}

	if entries, ok := r.Weights(); ok {
		v.Weights = sortedRows(entries)
		v.WeightsSource = SourceServer
	} else {
		v.Weights = defaultRows(defaults)
		v.WeightsSource = SourceDefault
	}

	v.FinalPnL = scalar(r.FinalPnL, FormatCurrency)
	v.IndexVol = scalar(r.IndexVol, FormatRatio)
	v.Dispersion = scalar(r.Dispersion, FormatRatio)

	v.PnL, v.Series, v.HasPnL = series(r, opts.Locale)

	if vols, keyed, ok := r.ComponentVols(); ok {
		v.ComponentVols = volRows(vols, keyed, opts.Symbols)
		v.ComponentVolsKeyed = keyed
	}

	return v
}

func scalar(get func() (float64, bool), format func(float64) string) string {
	x, ok := get()
	if !ok {
		return Placeholder
	}
	return format(x)
}

// defaultRows keeps the authored order; defaults are never sorted.
func defaultRows(table []weights.Weight) []WeightRow {
	rows := make([]WeightRow, len(table))
	for i, w := range table {
		rows[i] = WeightRow{
			Ticker:  w.Ticker,
			Weight:  w.Weight,
			Numeric: true,
			Display: FormatPercent(w.Weight),
		}
	}
	return rows
}

// sortedRows orders server weights descending. Ties keep response key
// order; non-numeric weights follow all numeric ones.
func sortedRows(entries []Entry) []WeightRow {
	rows := make([]WeightRow, len(entries))
	for i, e := range entries {
		rows[i] = WeightRow{Ticker: e.Key, Weight: e.Value, Numeric: e.OK, Display: Placeholder}
		if e.OK {
			rows[i].Display = FormatPercent(e.Value)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Numeric != rows[j].Numeric {
			return rows[i].Numeric
		}
		if !rows[i].Numeric {
			return false
		}
		return rows[i].Weight > rows[j].Weight
	})
	return rows
}

// series zips dates with pnls by index. dates drives the row count: extra
// pnls are dropped, missing ones show the placeholder.
func series(r *Result, locale string) ([]PnLRow, []Point, bool) {
	dates, ok := r.Dates()
	if !ok || len(dates) == 0 {
		return nil, nil, false
	}
	pnls, ok := r.PnLs()
	if !ok {
		return nil, nil, false
	}

	rows := make([]PnLRow, len(dates))
	var points []Point
	for i, rawDate := range dates {
		date, isString := asString(rawDate)
		row := PnLRow{Date: Placeholder, PnL: Placeholder}
		if isString {
			row.Date = FormatDate(date, locale)
		}

		var pnl float64
		var numeric bool
		if i < len(pnls) {
			pnl, numeric = asNumber(pnls[i])
		}
		if numeric {
			row.PnL = FormatCurrency(pnl)
			if t, ok := ParseDate(date); isString && ok {
				points = append(points, Point{Date: t, PnL: pnl})
			}
		}
		rows[i] = row
	}
	return rows, points, true
}

func volRows(vols []Entry, keyed bool, symbols string) []VolRow {
	labels := SplitSymbols(symbols)
	useSymbols := !keyed && len(labels) == len(vols)

	rows := make([]VolRow, len(vols))
	for i, e := range vols {
		label := e.Key
		if !keyed {
			label = fmt.Sprintf("#%d", i+1)
			if useSymbols {
				label = labels[i]
			}
		}
		rows[i] = VolRow{Label: label, Display: Placeholder}
		if e.OK {
			rows[i].Display = FormatRatio(e.Value)
		}
	}
	return rows
}

// SplitSymbols splits a raw symbol list for display labelling only. The
// request still carries the raw string.
func SplitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
