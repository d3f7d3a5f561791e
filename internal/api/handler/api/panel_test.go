package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/dispersion/internal/api/response"
	"github.com/newthinker/dispersion/internal/panel"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDoer struct {
	mu    sync.Mutex
	calls int
	block chan struct{}
	body  string
}

func (d *stubDoer) Do(ctx context.Context, req request.Request, runID string) ([]byte, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(d.body), nil
}

func newHandler(t *testing.T, doer *stubDoer) (*PanelHandler, *panel.Panel) {
	t.Helper()
	p, err := panel.New(doer, panel.Options{Mode: request.ModeWeighted})
	require.NoError(t, err)
	return NewPanelHandler(context.Background(), p), p
}

func decodeState(t *testing.T, body []byte) StateData {
	t.Helper()
	var env struct {
		Data StateData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &env))
	return env.Data
}

func TestPanelHandler_State(t *testing.T) {
	h, _ := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, w.Code)
	s := decodeState(t, w.Body.Bytes())
	assert.Equal(t, "weighted", s.Mode)
	assert.Equal(t, "2025-01-14", s.Config.Start)
	assert.Equal(t, 1000000.0, s.Config.Notional)
	assert.Equal(t, "default", s.WeightsSource)
	assert.Len(t, s.Weights, 50)
	assert.Nil(t, s.Result)
	assert.Nil(t, s.LastRun)
}

func TestPanelHandler_State_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodDelete, "/api/state", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPanelHandler_Edit(t *testing.T) {
	h, p := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"total_notional":"250000","vega_hedge":"abc","start":"2024-02-01"}`)
	h.Edit(w, httptest.NewRequest(http.MethodPost, "/api/edit", body))

	require.Equal(t, http.StatusOK, w.Code)
	cfg := p.Snapshot().Config
	assert.Equal(t, 250000.0, cfg.TotalNotional)
	assert.Equal(t, 0.0, cfg.VegaHedge)
	assert.Equal(t, "2024-02-01", cfg.Start)
}

func TestPanelHandler_Edit_UnknownFieldRejectsAll(t *testing.T) {
	h, p := newHandler(t, &stubDoer{})
	before := p.Snapshot().Config

	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"start":"2024-02-01","leverage":"3"}`)
	h.Edit(w, httptest.NewRequest(http.MethodPost, "/api/edit", body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_FIELD", resp.Error.Code)
	assert.Equal(t, before, p.Snapshot().Config)
}

func TestPanelHandler_Edit_BadJSON(t *testing.T) {
	h, _ := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	h.Edit(w, httptest.NewRequest(http.MethodPost, "/api/edit", bytes.NewBufferString(`[`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPanelHandler_Run(t *testing.T) {
	doer := &stubDoer{block: make(chan struct{}), body: `{"final_pnl": 10, "dates": [], "pnls": []}`}
	h, p := newHandler(t, doer)

	w := httptest.NewRecorder()
	h.Run(w, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp response.SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Meta.RunID)

	// second run while the first is blocked
	w = httptest.NewRecorder()
	h.Run(w, httptest.NewRequest(http.MethodPost, "/api/run", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	close(doer.block)
	require.Eventually(t, func() bool { return !p.Snapshot().InFlight }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, doer.calls)

	w = httptest.NewRecorder()
	h.State(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	s := decodeState(t, w.Body.Bytes())
	require.NotNil(t, s.Result)
	assert.Equal(t, "$10.00", s.Result.FinalPnL)
	assert.False(t, s.Result.HasPnL)
	assert.Equal(t, []RowData{{Label: "No PnL data"}}, s.Result.PnL)
	assert.NotNil(t, s.LastRun)
}

func TestPanelHandler_Weights(t *testing.T) {
	h, _ := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	h.Weights(w, httptest.NewRequest(http.MethodGet, "/api/weights", nil))

	var env struct {
		Data struct {
			Weights []struct {
				Ticker string  `json:"ticker"`
				Weight float64 `json:"weight"`
			} `json:"weights"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Data.Weights, 50)
	assert.Equal(t, "LIN", env.Data.Weights[0].Ticker)
}

func TestPanelHandler_Weights_MethodNotAllowed(t *testing.T) {
	h, _ := newHandler(t, &stubDoer{})

	w := httptest.NewRecorder()
	h.Weights(w, httptest.NewRequest(http.MethodPost, "/api/weights", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
}
