// Package api serves the panel state and commands as JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/newthinker/dispersion/internal/api/response"
	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/newthinker/dispersion/internal/weights"
)

// Panel is the part of *panel.Panel the handlers need.
type Panel interface {
	Snapshot() panel.State
	Edit(field, raw string) error
	SubmitAsync(ctx context.Context) (string, error)
}

// ConfigData is the run configuration as the form shows it.
type ConfigData struct {
	Start         string  `json:"start"`
	End           string  `json:"end"`
	TotalNotional string  `json:"total_notional"`
	VegaHedge     string  `json:"vega_hedge"`
	Symbols       string  `json:"symbols"`
	Notional      float64 `json:"total_notional_value"`
	Hedge         float64 `json:"vega_hedge_value"`
}

// WeightData is one weights table row.
type WeightData struct {
	Ticker  string `json:"ticker"`
	Display string `json:"display"`
}

// RowData is one labelled value, used for PnL and volatility rows.
type RowData struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ResultData is the results section. Nil before the first run.
type ResultData struct {
	FinalPnL      string    `json:"final_pnl"`
	IndexVol      string    `json:"index_vol"`
	Dispersion    string    `json:"dispersion"`
	HasPnL        bool      `json:"has_pnl"`
	PnL           []RowData `json:"pnl"`
	ComponentVols []RowData `json:"component_vols,omitempty"`
}

// StateData is the GET /api/state payload.
type StateData struct {
	Mode          string       `json:"mode"`
	Config        ConfigData   `json:"config"`
	InFlight      bool         `json:"in_flight"`
	Notice        string       `json:"notice,omitempty"`
	RunID         string       `json:"run_id,omitempty"`
	LastRun       *time.Time   `json:"last_run,omitempty"`
	WeightsSource string       `json:"weights_source"`
	Weights       []WeightData `json:"weights"`
	Result        *ResultData  `json:"result"`
}

// NewStateData converts a panel snapshot for the JSON API.
func NewStateData(s panel.State) StateData {
	d := StateData{
		Mode: string(s.Mode),
		Config: ConfigData{
			Start:         s.Config.Start,
			End:           s.Config.End,
			TotalNotional: s.Config.TotalNotionalRaw,
			VegaHedge:     s.Config.VegaHedgeRaw,
			Symbols:       s.Config.Symbols,
			Notional:      s.Config.TotalNotional,
			Hedge:         s.Config.VegaHedge,
		},
		InFlight:      s.InFlight,
		Notice:        s.Notice,
		RunID:         s.RunID,
		WeightsSource: string(s.View.WeightsSource),
		Weights:       make([]WeightData, 0, len(s.View.Weights)),
	}
	if !s.LastRun.IsZero() {
		last := s.LastRun.UTC()
		d.LastRun = &last
	}
	for _, w := range s.View.Weights {
		d.Weights = append(d.Weights, WeightData{Ticker: w.Ticker, Display: w.Display})
	}

	v := s.View
	if !v.HasResult {
		return d
	}
	res := &ResultData{
		FinalPnL:   v.FinalPnL,
		IndexVol:   v.IndexVol,
		Dispersion: v.Dispersion,
		HasPnL:     v.HasPnL,
		PnL:        make([]RowData, 0, len(v.PnL)),
	}
	for _, row := range v.PnL {
		res.PnL = append(res.PnL, RowData{Label: row.Date, Value: row.PnL})
	}
	if !v.HasPnL {
		res.PnL = append(res.PnL, RowData{Label: result.NoPnLData})
	}
	for _, row := range v.ComponentVols {
		res.ComponentVols = append(res.ComponentVols, RowData{Label: row.Label, Value: row.Display})
	}
	d.Result = res
	return d
}

// PanelHandler handles panel API requests.
type PanelHandler struct {
	panel Panel
	// runCtx outlives the request that starts a run.
	runCtx context.Context
}

// NewPanelHandler creates a handler. Runs started through it are
// cancelled when runCtx is done.
func NewPanelHandler(runCtx context.Context, p Panel) *PanelHandler {
	if runCtx == nil {
		runCtx = context.Background()
	}
	return &PanelHandler{panel: p, runCtx: runCtx}
}

// State returns the current panel state.
func (h *PanelHandler) State(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response.JSON(w, http.StatusOK, NewStateData(h.panel.Snapshot()))
}

// Edit applies a JSON object of field → raw value. Unknown fields reject
// the whole edit.
func (h *PanelHandler) Edit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	for name := range fields {
		if !runconfig.Field(name).Valid() {
			response.Fail(w, core.WrapError(core.ErrUnknownField, fmt.Errorf("field %q", name)))
			return
		}
	}
	for _, f := range runconfig.Fields {
		raw, ok := fields[string(f)]
		if !ok {
			continue
		}
		if err := h.panel.Edit(string(f), raw); err != nil {
			response.Fail(w, err)
			return
		}
	}

	response.JSON(w, http.StatusOK, NewStateData(h.panel.Snapshot()))
}

// Run starts a submission and returns immediately with its run id.
func (h *PanelHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID, err := h.panel.SubmitAsync(h.runCtx)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSONWithRun(w, http.StatusAccepted, runID, map[string]any{
		"run_id":    runID,
		"in_flight": true,
	})
}

// Weights returns the compiled-in default allocation.
func (h *PanelHandler) Weights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	table := weights.Defaults()
	response.JSON(w, http.StatusOK, map[string]any{
		"weights": table,
		"net":     weights.Sum(table),
	})
}
