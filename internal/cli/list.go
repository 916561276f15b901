package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/engine"
	"github.com/popgate/popgate/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered experiences",
	Long:  `List all registered experiences with their targeting and frequency caps.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withStore(func(s *store.SQLiteStore) error {
		exps, err := s.ListExperiences(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list experiences: %w", err)
		}

		if len(exps) == 0 {
			fmt.Println("No experiences yet.")
			fmt.Println()
			fmt.Println("Register one:")
			fmt.Println("  popgate register spring-sale --kind banner --url-contains /products --max 1 --per session")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tPRIORITY\tTARGETING\tFREQUENCY\tCREATED")
		for _, exp := range exps {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
				exp.ID,
				strings.ToUpper(exp.Kind),
				exp.Priority,
				formatTargeting(exp.Targeting),
				formatFrequency(exp.Frequency),
				exp.CreatedAt.Format("2006-01-02"),
			)
		}
		return w.Flush()
	})
}

func formatTargeting(t engine.Targeting) string {
	var parts []string
	if t.URL != nil {
		switch {
		case t.URL.Equals != "":
			parts = append(parts, "url="+t.URL.Equals)
		case t.URL.Contains != "":
			parts = append(parts, "url~"+t.URL.Contains)
		case t.URL.Pattern != "":
			parts = append(parts, "url/"+t.URL.Pattern+"/")
		}
	}
	if t.Trigger != nil {
		rule := t.Trigger.Name
		if t.Trigger.Threshold != nil {
			rule = fmt.Sprintf("%s:%d", rule, *t.Trigger.Threshold)
		}
		parts = append(parts, rule)
	}
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, " + ")
}

func formatFrequency(f *engine.Frequency) string {
	if f == nil {
		return "uncapped"
	}
	return fmt.Sprintf("%d/%s", f.Max, f.Per)
}
