// Package runconfig holds the user-editable backtest parameters.
//
// A RunConfig is a value. Edits produce a new value via Set, so the panel
// can treat every keystroke as a command applied to the current state.
package runconfig

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/shopspring/decimal"
)

// Field names an editable parameter. Values match the form input names.
type Field string

const (
	FieldStart         Field = "start"
	FieldEnd           Field = "end"
	FieldTotalNotional Field = "total_notional"
	FieldVegaHedge     Field = "vega_hedge"
	FieldSymbols       Field = "symbols"
)

// Fields lists every editable field in form order.
var Fields = []Field{FieldStart, FieldEnd, FieldTotalNotional, FieldVegaHedge, FieldSymbols}

const (
	DefaultStart         = "2025-01-14"
	DefaultEnd           = "2025-01-24"
	DefaultTotalNotional = 1_000_000
	DefaultVegaHedge     = 0.02
)

// RunConfig holds the raw inputs and their coerced forms.
type RunConfig struct {
	Start string
	End   string

	TotalNotional    float64
	TotalNotionalRaw string

	VegaHedge    float64
	VegaHedgeRaw string

	// Symbols is passed to the service unparsed.
	Symbols string
}

// Defaults returns the session-start configuration.
func Defaults() RunConfig {
	return RunConfig{
		Start:            DefaultStart,
		End:              DefaultEnd,
		TotalNotional:    DefaultTotalNotional,
		TotalNotionalRaw: formatFloat(DefaultTotalNotional),
		VegaHedge:        DefaultVegaHedge,
		VegaHedgeRaw:     formatFloat(DefaultVegaHedge),
	}
}

// Overrides seeds a RunConfig from configured defaults. Zero-valued
// strings leave the built-in default in place.
type Overrides struct {
	Start         string
	End           string
	TotalNotional string
	VegaHedge     string
	Symbols       string
}

// WithOverrides applies non-empty overrides through the same coercion as
// interactive edits.
func (c RunConfig) WithOverrides(o Overrides) RunConfig {
	pairs := []struct {
		field Field
		raw   string
	}{
		{FieldStart, o.Start},
		{FieldEnd, o.End},
		{FieldTotalNotional, o.TotalNotional},
		{FieldVegaHedge, o.VegaHedge},
		{FieldSymbols, o.Symbols},
	}
	for _, p := range pairs {
		if p.raw != "" {
			c = c.Set(p.field, p.raw)
		}
	}
	return c
}

// Set returns a copy of c with field updated from a raw input string.
// Unknown fields leave c unchanged. Coercion failures never surface.
func (c RunConfig) Set(field Field, raw string) RunConfig {
	switch field {
	case FieldStart:
		c.Start = raw
	case FieldEnd:
		c.End = raw
	case FieldTotalNotional:
		c.TotalNotionalRaw = raw
		c.TotalNotional = ParseNotional(raw)
	case FieldVegaHedge:
		c.VegaHedgeRaw = raw
		c.VegaHedge = ParseVegaHedge(raw)
	case FieldSymbols:
		c.Symbols = raw
	}
	return c
}

// Apply is Set with an error for unknown field names, for callers that
// receive field names from outside the process.
func (c RunConfig) Apply(name, raw string) (RunConfig, error) {
	field := Field(name)
	if !field.Valid() {
		return c, core.WrapError(core.ErrUnknownField, fmt.Errorf("field %q", name))
	}
	return c.Set(field, raw), nil
}

// Valid reports whether f names an editable parameter.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}

// Raw returns the string form currently held for field, as an input
// widget would show it.
func (c RunConfig) Raw(field Field) string {
	switch field {
	case FieldStart:
		return c.Start
	case FieldEnd:
		return c.End
	case FieldTotalNotional:
		return c.TotalNotionalRaw
	case FieldVegaHedge:
		return c.VegaHedgeRaw
	case FieldSymbols:
		return c.Symbols
	}
	return ""
}

// ParseNotional coerces a decimal string. Blank, invalid or out of
// float64 range input is 0.
func ParseNotional(raw string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return finiteOrZero(d.InexactFloat64())
}

// ParseVegaHedge coerces a float string, falling back to 0. NaN and
// infinities are not numbers the service can receive, so they are 0 too.
func ParseVegaHedge(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return finiteOrZero(v)
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
