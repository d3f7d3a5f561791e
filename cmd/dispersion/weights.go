package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/dispersion/internal/result"
	"github.com/newthinker/dispersion/internal/weights"
	"github.com/spf13/cobra"
)

var (
	weightsJSON    bool
	weightsTickers bool
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Print the default weight allocation",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := weights.Defaults()
		out := cmd.OutOrStdout()

		if weightsTickers {
			_, err := fmt.Fprintln(out, strings.Join(weights.Tickers(table), ","))
			return err
		}

		if weightsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(weights.AsMap(table))
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tWEIGHT\t")
		fmt.Fprintln(w, "------\t------\t")
		for _, e := range table {
			fmt.Fprintf(w, "%s\t%s\t\n", e.Ticker, result.FormatPercent(e.Weight))
		}
		fmt.Fprintf(w, "NET\t%s\t\n", result.FormatPercent(weights.Sum(table)))
		return w.Flush()
	},
}

func init() {
	weightsCmd.Flags().BoolVar(&weightsJSON, "json", false, "print the ticker to weight map sent to the service")
	weightsCmd.Flags().BoolVar(&weightsTickers, "tickers", false, "print the tickers as a comma-separated list for run --symbols")
	rootCmd.AddCommand(weightsCmd)
}
