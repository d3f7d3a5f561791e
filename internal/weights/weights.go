// Package weights holds the compiled-in reference allocation shown by the
// panel and sent with weighted runs.
package weights

// Weight is a single ticker allocation. Fractions may be negative for
// short positions and are not required to sum to one.
type Weight struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// defaultTable is authored in descending weight order. Tickers are unique.
var defaultTable = []Weight{
	{"LIN", 0.081693},
	{"AAPL", 0.080473},
	{"MSFT", 0.073996},
	{"NVDA", 0.067715},
	{"V", 0.056792},
	{"BLK", 0.036357},
	{"TXT", 0.033638},
	{"CSCO", 0.033197},
	{"MCO", 0.03317},
	{"GS", 0.031993},
	{"BSX", 0.031509},
	{"SYK", 0.030046},
	{"AMZN", 0.025986},
	{"GOOG", 0.024412},
	{"TSLA", 0.023955},
	{"CMI", 0.022742},
	{"IT", 0.022477},
	{"META", 0.022473},
	{"NDAQ", 0.021076},
	{"PRU", 0.018877},
	{"QCOM", 0.01843},
	{"HLT", 0.017915},
	{"GEHC", 0.017651},
	{"AVGO", 0.016904},
	{"TT", 0.016903},
	{"DD", 0.015875},
	{"BK", 0.01489},
	{"PANW", 0.014594},
	{"TROW", 0.014045},
	{"ORCL", 0.012855},
	{"CPAY", 0.010753},
	{"AMD", 0.010065},
	{"GE", 0.00982},
	{"KLAC", 0.008895},
	{"PFG", 0.007557},
	{"JCI", 0.007214},
	{"EMR", 0.007132},
	{"PTC", 0.006235},
	{"TEL", 0.005727},
	{"XYL", 0.005382},
	{"ADI", 0.002533},
	{"MS", 0.002515},
	{"APH", 0.002222},
	{"ISRG", 0.001165},
	{"DOV", 0.000016},
	{"APO", -0.000427},
	{"AXP", -0.002341},
	{"BX", -0.00242},
	{"WAB", -0.003527},
	{"PH", -0.011154},
}

// Defaults returns a copy of the reference table in authored order.
func Defaults() []Weight {
	out := make([]Weight, len(defaultTable))
	copy(out, defaultTable)
	return out
}

// AsMap projects a table into a ticker->weight mapping. Later duplicates
// overwrite earlier ones.
func AsMap(table []Weight) map[string]float64 {
	m := make(map[string]float64, len(table))
	for _, w := range table {
		m[w.Ticker] = w.Weight
	}
	return m
}

// Tickers returns the tickers of a table in order.
func Tickers(table []Weight) []string {
	out := make([]string, len(table))
	for i, w := range table {
		out[i] = w.Ticker
	}
	return out
}

// Sum returns the net allocation of a table.
func Sum(table []Weight) float64 {
	var total float64
	for _, w := range table {
		total += w.Weight
	}
	return total
}
