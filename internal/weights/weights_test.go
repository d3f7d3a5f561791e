package weights

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_AuthoredOrderIsDescending(t *testing.T) {
	table := Defaults()
	require.Len(t, table, 50)

	assert.Equal(t, "LIN", table[0].Ticker)
	assert.Equal(t, "PH", table[len(table)-1].Ticker)
	for i := 1; i < len(table); i++ {
		assert.GreaterOrEqual(t, table[i-1].Weight, table[i].Weight,
			"%s should not be below %s", table[i-1].Ticker, table[i].Ticker)
	}
}

func TestDefaults_UniqueTickers(t *testing.T) {
	seen := make(map[string]bool)
	for _, w := range Defaults() {
		assert.False(t, seen[w.Ticker], "duplicate ticker %s", w.Ticker)
		seen[w.Ticker] = true
	}
}

func TestDefaults_ReturnsCopy(t *testing.T) {
	a := Defaults()
	a[0].Weight = 99

	b := Defaults()
	assert.Equal(t, 0.081693, b[0].Weight)
}

func TestAsMap(t *testing.T) {
	table := Defaults()
	m := AsMap(table)

	assert.Len(t, m, len(table))
	assert.Equal(t, -0.011154, m["PH"])
	assert.Equal(t, 0.080473, m["AAPL"])
}

func TestTickers(t *testing.T) {
	got := Tickers([]Weight{{"A", 1}, {"B", 2}})
	assert.Equal(t, []string{"A", "B"}, got)
}

func TestSum(t *testing.T) {
	assert.InDelta(t, 0.5, Sum([]Weight{{"A", 0.75}, {"B", -0.25}}), 1e-12)
	assert.Zero(t, Sum(nil))
}
