package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/newthinker/dispersion/internal/request"
	"github.com/newthinker/dispersion/internal/runconfig"
	"github.com/newthinker/dispersion/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ImplementsDoer(t *testing.T) {
	var _ Doer = (*Client)(nil)
}

func TestNew_DefaultsBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("", time.Second).BaseURL())
	assert.Equal(t, "http://svc:9000", New("http://svc:9000/", time.Second).BaseURL())
}

func TestClient_URL(t *testing.T) {
	c := New("http://svc", time.Second)
	req := request.SymbolsBuilder{}.Build(runconfig.Defaults().Set(runconfig.FieldSymbols, "A,B"))
	assert.Equal(t, "http://svc/backtest?end=2025-01-24&start=2025-01-14&symbols=A%2CB", c.URL(req))
}

func TestClient_Do_WeightedPost(t *testing.T) {
	var gotMethod, gotPath, gotRunID, gotContentType string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotRunID = r.Header.Get(RunIDHeader)
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"final_pnl": 12.5}`))
	}))
	defer server.Close()

	c := New(server.URL, 5*time.Second)
	req := request.WeightedBuilder{Table: weights.Defaults()}.Build(runconfig.Defaults())

	data, err := c.Do(context.Background(), req, "run-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"final_pnl": 12.5}`, string(data))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/backtest", gotPath)
	assert.Equal(t, "run-1", gotRunID)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, 1_000_000.0, gotBody["total_notional"])
	assert.Equal(t, 0.02, gotBody["vega_hedge"])
	assert.Len(t, gotBody["weights"], 50)
}

func TestClient_Do_SymbolsGet(t *testing.T) {
	var gotQuery map[string][]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Empty(t, r.Header.Get("Content-Type"))
		w.Write([]byte(`{"index_vol": 0.2}`))
	}))
	defer server.Close()

	cfg := runconfig.Defaults().Set(runconfig.FieldSymbols, "AAPL,MSFT")
	req := request.SymbolsBuilder{IncludeVegaHedge: true}.Build(cfg)

	_, err := New(server.URL, 5*time.Second).Do(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL,MSFT"}, gotQuery["symbols"])
	assert.Equal(t, []string{"0.02"}, gotQuery["vega_hedge"])
}

func TestClient_Do_Non2xx(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte(`{"detail":"boom"}`))
		}))

		_, err := New(server.URL, 5*time.Second).Do(context.Background(), request.Request{Method: "GET", Path: "/backtest"}, "")
		server.Close()

		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrTransportFailed), "status %d", status)
	}
}

func TestClient_Do_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := New(url, 5*time.Second).Do(context.Background(), request.Request{Method: "GET", Path: "/backtest"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransportFailed))
}

func TestClient_Do_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL, 0).Do(ctx, request.Request{Method: "GET", Path: "/backtest"}, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrTransportTimeout))
}

func TestClient_Do_UnencodableBody(t *testing.T) {
	_, err := New("http://unused", time.Second).Do(context.Background(),
		request.Request{Method: "POST", Path: "/backtest", Body: map[string]any{"bad": make(chan int)}}, "")
	assert.True(t, errors.Is(err, core.ErrTransportFailed))
}
