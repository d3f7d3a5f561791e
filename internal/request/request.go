// Package request maps a run configuration onto one outbound request for
// the backtest service. Builders are pure: no validation, no I/O.
package request

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/newthinker/dispersion/internal/weights"
)

// Path is the service endpoint for both transport shapes.
const Path = "/backtest"

// Mode selects the transport shape for a deployment.
type Mode string

const (
	// ModeWeighted posts the full weight mapping with notional and hedge.
	ModeWeighted Mode = "weighted"
	// ModeSymbols sends a symbol list, dates and hedge as query parameters.
	ModeSymbols Mode = "symbols"
	// ModeSymbolsMinimal sends only the symbol list and dates.
	ModeSymbolsMinimal Mode = "symbols_minimal"
)

// Modes lists the supported modes.
var Modes = []Mode{ModeWeighted, ModeSymbols, ModeSymbolsMinimal}

// ParseMode converts a configured mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", core.WrapError(core.ErrUnknownMode, fmt.Errorf("mode %q", s))
}

// UsesWeights reports whether the mode transmits the weight table.
func (m Mode) UsesWeights() bool { return m == ModeWeighted }

// UsesSymbols reports whether the mode transmits the symbol list.
func (m Mode) UsesSymbols() bool { return m == ModeSymbols || m == ModeSymbolsMinimal }

// Request is a transport-neutral description of one service call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is JSON-encoded by the transport when non-nil.
	Body any
}

// WeightedPayload is the JSON body of a weighted run.
type WeightedPayload struct {
	Weights       map[string]float64 `json:"weights"`
	Start         string             `json:"start"`
	End           string             `json:"end"`
	TotalNotional float64            `json:"total_notional"`
	VegaHedge     float64            `json:"vega_hedge"`
}

// Builder produces the request for one mode.
type Builder interface {
	Mode() Mode
	Build(cfg runconfig.RunConfig) Request
}

// For returns the builder for mode. table is the allocation sent by
// weighted runs.
func For(mode Mode, table []weights.Weight) (Builder, error) {
	switch mode {
	case ModeWeighted:
		return WeightedBuilder{Table: table}, nil
	case ModeSymbols:
		return SymbolsBuilder{IncludeVegaHedge: true}, nil
	case ModeSymbolsMinimal:
		return SymbolsBuilder{}, nil
	default:
		return nil, core.WrapError(core.ErrUnknownMode, fmt.Errorf("mode %q", mode))
	}
}

// WeightedBuilder builds POST /backtest with a JSON body.
type WeightedBuilder struct {
	Table []weights.Weight
}

func (b WeightedBuilder) Mode() Mode { return ModeWeighted }

func (b WeightedBuilder) Build(cfg runconfig.RunConfig) Request {
	return Request{
		Method: http.MethodPost,
		Path:   Path,
		Body: WeightedPayload{
			Weights:       weights.AsMap(b.Table),
			Start:         cfg.Start,
			End:           cfg.End,
			TotalNotional: cfg.TotalNotional,
			VegaHedge:     cfg.VegaHedge,
		},
	}
}

// SymbolsBuilder builds GET /backtest with query parameters. Notional has
// no slot in this shape.
type SymbolsBuilder struct {
	IncludeVegaHedge bool
}

func (b SymbolsBuilder) Mode() Mode {
	if b.IncludeVegaHedge {
		return ModeSymbols
	}
	return ModeSymbolsMinimal
}

func (b SymbolsBuilder) Build(cfg runconfig.RunConfig) Request {
	q := url.Values{}
	q.Set("symbols", cfg.Symbols)
	q.Set("start", cfg.Start)
	q.Set("end", cfg.End)
	if b.IncludeVegaHedge {
		q.Set("vega_hedge", strconv.FormatFloat(cfg.VegaHedge, 'f', -1, 64))
	}
	return Request{
		Method: http.MethodGet,
		Path:   Path,
		Query:  q,
	}
}
