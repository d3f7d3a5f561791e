package result

import (
	"errors"
	"math"
	"testing"

	"github.com/newthinker/dispersion/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_RejectsNonObjects(t *testing.T) {
	bodies := []string{
		``,
		`null`,
		`[]`,
		`[{"final_pnl": 1}]`,
		`"ok"`,
		`42`,
		`true`,
		`{"final_pnl": 1`,
		`{"a":1} {"b":2}`,
		`<html>Bad Gateway</html>`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			r, err := Decode([]byte(body))
			assert.Nil(t, r)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedResponse))
		})
	}
}

func TestDecode_EmptyObject(t *testing.T) {
	r, err := Decode([]byte(` { } `))
	require.NoError(t, err)
	assert.Empty(t, r.Keys())
	assert.False(t, r.Has(KeyWeights))
}

func TestDecode_KeepsKeyOrder(t *testing.T) {
	r, err := Decode([]byte(`{"pnls":[1],"dates":["2025-01-14"],"final_pnl":3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"pnls", "dates", "final_pnl"}, r.Keys())
}

func TestResult_NumberGuards(t *testing.T) {
	r, err := Decode([]byte(`{
		"final_pnl": 1234.5,
		"index_vol": "0.2",
		"dispersion": null,
		"huge": 1e400
	}`))
	require.NoError(t, err)

	v, ok := r.FinalPnL()
	assert.True(t, ok)
	assert.Equal(t, 1234.5, v)

	_, ok = r.IndexVol()
	assert.False(t, ok, "string should not pass the numeric guard")

	_, ok = r.Dispersion()
	assert.False(t, ok, "null should not pass the numeric guard")
	assert.True(t, r.Has(KeyDispersion))

	v, ok = r.Number("huge")
	assert.True(t, ok)
	assert.True(t, math.IsInf(v, 1))

	_, ok = r.Number("missing")
	assert.False(t, ok)
}

func TestResult_Weights(t *testing.T) {
	r, err := Decode([]byte(`{"weights":{"B":0.1,"A":"x","C":0.3,"B":0.2}}`))
	require.NoError(t, err)

	entries, ok := r.Weights()
	require.True(t, ok)
	require.Len(t, entries, 3)

	// duplicate key keeps first position, last value
	assert.Equal(t, Entry{Key: "B", Value: 0.2, OK: true}, entries[0])
	assert.Equal(t, "A", entries[1].Key)
	assert.False(t, entries[1].OK)
	assert.Equal(t, Entry{Key: "C", Value: 0.3, OK: true}, entries[2])
}

func TestResult_WeightsNotObject(t *testing.T) {
	for _, body := range []string{`{"weights":null}`, `{"weights":[0.1]}`, `{"weights":"AAPL"}`} {
		r, err := Decode([]byte(body))
		require.NoError(t, err)
		_, ok := r.Weights()
		assert.False(t, ok, body)
	}
}

func TestResult_Arrays(t *testing.T) {
	r, err := Decode([]byte(`{"dates":[],"pnls":{"0":1}}`))
	require.NoError(t, err)

	dates, ok := r.Dates()
	assert.True(t, ok)
	assert.Empty(t, dates)

	_, ok = r.PnLs()
	assert.False(t, ok)
}

func TestResult_ComponentVols(t *testing.T) {
	t.Run("positional", func(t *testing.T) {
		r, _ := Decode([]byte(`{"component_vols":[0.1,null,0.3]}`))
		vols, keyed, ok := r.ComponentVols()
		require.True(t, ok)
		assert.False(t, keyed)
		require.Len(t, vols, 3)
		assert.False(t, vols[1].OK)
		assert.Equal(t, 0.3, vols[2].Value)
	})

	t.Run("keyed", func(t *testing.T) {
		r, _ := Decode([]byte(`{"component_vols":{"MSFT":0.2,"AAPL":0.1}}`))
		vols, keyed, ok := r.ComponentVols()
		require.True(t, ok)
		assert.True(t, keyed)
		assert.Equal(t, "MSFT", vols[0].Key)
	})

	t.Run("wrong type", func(t *testing.T) {
		r, _ := Decode([]byte(`{"component_vols":0.5}`))
		_, _, ok := r.ComponentVols()
		assert.False(t, ok)
	})
}

func TestResult_NilSafe(t *testing.T) {
	var r *Result
	assert.Nil(t, r.Keys())
	assert.False(t, r.Has(KeyFinalPnL))
	_, ok := r.FinalPnL()
	assert.False(t, ok)
}

func TestResult_Usable(t *testing.T) {
	r, err := Decode([]byte(`{"weights":{"A":1},"final_pnl":"x","dates":[],"component_vols":[1]}`))
	require.NoError(t, err)

	tests := []struct {
		key             string
		present, usable bool
	}{
		{KeyWeights, true, true},
		{KeyFinalPnL, true, false},
		{KeyDates, true, true},
		{KeyComponentVols, true, true},
		{KeyPnLs, false, false},
		{KeyIndexVol, false, false},
	}
	for _, tt := range tests {
		present, usable := r.Usable(tt.key)
		assert.Equal(t, tt.present, present, tt.key)
		assert.Equal(t, tt.usable, usable, tt.key)
	}
}
