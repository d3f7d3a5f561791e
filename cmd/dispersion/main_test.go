package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	var got map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"final_pnl": 321.5, "dates": ["2025-01-14", "2025-01-15"], "pnls": [100, 221.5]}`))
	}))
	defer backend.Close()

	chartPath := filepath.Join(t.TempDir(), "pnl.png")
	out, err := execute(t, "run", "--plain", "--base-url", backend.URL,
		"--notional", "250000", "--start", "2024-03-01", "--chart", chartPath)
	require.NoError(t, err)

	assert.Contains(t, out, "Final PnL: $321.50")
	assert.Contains(t, out, "$221.50")
	assert.Equal(t, 250000.0, got["total_notional"])
	assert.Equal(t, "2024-03-01", got["start"])
	assert.Equal(t, "2025-01-24", got["end"])

	info, err := os.Stat(chartPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunCommand_ServiceFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer backend.Close()

	out, err := execute(t, "run", "--plain", "--base-url", backend.URL, "--chart", "")
	require.Error(t, err)
	assert.Contains(t, out, "Error fetching data: backtest service request failed")
}

func TestWeightsCommand(t *testing.T) {
	out, err := execute(t, "weights", "--json")
	require.NoError(t, err)

	var table map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Len(t, table, 50)
	assert.Equal(t, 0.081693, table["LIN"])
}

func TestWeightsCommand_Tickers(t *testing.T) {
	out, err := execute(t, "weights", "--tickers")
	weightsTickers = false
	require.NoError(t, err)

	tickers := strings.Split(strings.TrimSpace(out), ",")
	assert.Len(t, tickers, 50)
	assert.Equal(t, "LIN", tickers[0])
	assert.Equal(t, "PH", tickers[49])
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dispersion dev")
}
