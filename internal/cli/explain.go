package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/store"
)

func init() {
	rootCmd.AddCommand(newExplainCmd())
}

func newExplainCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "explain <id>",
		Short: "Explain one experience's decision, with zero side effects",
		Long: `Evaluate a single experience against a context and print the full
sub-rule trace. Nothing is recorded: no impression, no decision history.

Example:
  popgate explain spring-sale --url https://example.com/products/9`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				eng, err := loadEngine(ctx, s, url)
				if err != nil {
					return err
				}
				defer eng.Destroy()

				dec := eng.Explain(id, &engine.Context{URL: url})
				if dec == nil {
					return fmt.Errorf("experience '%s' not found", id)
				}

				out := cmd.OutOrStdout()
				verdict := "would NOT show"
				if dec.Show {
					verdict = "would show"
				}
				fmt.Fprintf(out, "%s %s at %s\n\n", id, verdict, dec.Context.URL)

				fmt.Fprintln(out, "Reasons:")
				for _, reason := range dec.Reasons {
					fmt.Fprintf(out, "  - %s\n", reason)
				}

				fmt.Fprintln(out)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "STEP\tPASSED\tDURATION")
				for _, step := range dec.Trace {
					fmt.Fprintf(w, "%s\t%t\t%s\n", step.Step, step.Passed, step.Duration)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "context URL")
	return cmd
}
