package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/stats"
	"github.com/popgate/popgate/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show per-experience show rates from the decision audit log",
	Long: `Summarize the decision audit log: per experience, how many times it was
evaluated, how often it was shown, and the 95% Wilson interval around the
show rate. A show rate far below expectation usually means a targeting
rule is stricter than intended; use 'explain' to see which one.`,
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		rows, err := s.GetDecisionStats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get decision stats: %w", err)
		}

		if len(rows) == 0 {
			fmt.Println("No decisions recorded yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EXPERIENCE\tEVALUATIONS\tSHOWN\tSHOW RATE\t95% INTERVAL")
		for _, row := range rows {
			rate := 0.0
			if row.Evaluations > 0 {
				rate = float64(row.Shown) / float64(row.Evaluations)
			}
			lower, upper := stats.WilsonInterval(row.Shown, row.Evaluations, 0.95)
			fmt.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.1f%% - %.1f%%\n",
				row.ExperienceID,
				row.Evaluations,
				row.Shown,
				rate*100,
				lower*100,
				upper*100,
			)
		}
		return w.Flush()
	})
}
