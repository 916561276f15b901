package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/store"
)

func init() {
	rootCmd.AddCommand(newEvaluateCmd())
}

func newEvaluateCmd() *cobra.Command {
	var (
		url    string
		all    bool
		user   []string
		custom []string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate registered experiences against a context",
		Long: `Evaluate the registered experiences against a context built from flags.

Single-match mode (default) returns the first experience, in registration
order, that matches and is within its frequency cap. --all evaluates every
experience independently, in priority order. Shown experiences record an
impression; use 'explain' for a side-effect-free dry run.

Examples:
  popgate evaluate --url https://example.com/products/9
  popgate evaluate --url https://example.com/pricing --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			userBag, err := parseKeyValues(user)
			if err != nil {
				return err
			}
			customBag, err := parseKeyValues(custom)
			if err != nil {
				return err
			}

			return withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				eng, err := loadEngine(ctx, s, url)
				if err != nil {
					return err
				}
				defer eng.Destroy()

				partial := &engine.Context{URL: url, User: userBag, Custom: customBag}

				var decisions []engine.Decision
				if all {
					decisions = eng.EvaluateAll(partial)
				} else {
					decisions = []engine.Decision{eng.Evaluate(partial)}
				}

				for _, dec := range decisions {
					persistDecision(ctx, s, dec)
					printDecision(cmd, dec)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&url, "url", "u", "", "context URL (required)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "evaluate every experience independently")
	cmd.Flags().StringArrayVar(&user, "user", nil, "user bag key=value (repeatable)")
	cmd.Flags().StringArrayVar(&custom, "custom", nil, "custom bag key=value (repeatable)")
	cmd.MarkFlagRequired("url")

	return cmd
}

func persistDecision(ctx context.Context, s store.Store, dec engine.Decision) {
	row := &store.DecisionRow{
		ID:           dec.ID,
		SessionID:    "cli",
		ExperienceID: dec.ExperienceID,
		Shown:        dec.Show,
		URL:          dec.Context.URL,
		Reasons:      dec.Reasons,
		Trace:        dec.Trace,
		EvaluatedAt:  dec.EvaluatedAt,
		Duration:     dec.Duration,
	}
	// Best-effort audit append; the decision itself already happened.
	_ = s.AppendDecision(ctx, row)
}

func printDecision(cmd *cobra.Command, dec engine.Decision) {
	out := cmd.OutOrStdout()
	if dec.Show {
		fmt.Fprintf(out, "SHOW %s (%s)\n", dec.ExperienceID, dec.Kind)
	} else if dec.ExperienceID != "" {
		fmt.Fprintf(out, "SKIP %s\n", dec.ExperienceID)
	} else {
		fmt.Fprintln(out, "SKIP (no experience matched)")
	}
	for _, reason := range dec.Reasons {
		fmt.Fprintf(out, "  - %s\n", reason)
	}
	fmt.Fprintf(out, "  evaluated %d experience(s) in %s\n", dec.ExperiencesEvaluated, dec.Duration)
}
