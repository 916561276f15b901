package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/store"
)

func init() {
	rootCmd.AddCommand(newDecisionsCmd())
}

func newDecisionsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Show the recent decision audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.SQLiteStore) error {
				rows, err := s.ListDecisions(context.Background(), limit)
				if err != nil {
					return fmt.Errorf("failed to list decisions: %w", err)
				}

				if len(rows) == 0 {
					fmt.Println("No decisions yet.")
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tSESSION\tEXPERIENCE\tSHOWN\tURL")
				for _, row := range rows {
					exp := row.ExperienceID
					if exp == "" {
						exp = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
						row.EvaluatedAt.Format("2006-01-02 15:04:05"),
						row.SessionID,
						exp,
						row.Shown,
						row.URL,
					)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of decisions to show")
	return cmd
}
