package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/store"
)

var (
	exportFormat string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the decision audit log",
	Long: `Export decision audit data in CSV or JSON format.

Examples:
  popgate export --format csv > decisions.csv
  popgate export --format json --limit 1000 > decisions.json`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	exportCmd.Flags().IntVarP(&exportLimit, "limit", "n", 1000, "number of decisions to export")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "csv" && exportFormat != "json" {
		return fmt.Errorf("invalid format: must be 'csv' or 'json'")
	}

	return withStore(func(s *store.SQLiteStore) error {
		rows, err := s.ListDecisions(context.Background(), exportLimit)
		if err != nil {
			return fmt.Errorf("failed to list decisions: %w", err)
		}

		if exportFormat == "csv" {
			return exportCSV(rows)
		}
		return exportJSON(rows)
	})
}

func exportCSV(rows []*store.DecisionRow) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write([]string{"id", "session_id", "experience_id", "shown", "url", "reasons", "evaluated_at", "duration_us"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.SessionID,
			row.ExperienceID,
			strconv.FormatBool(row.Shown),
			row.URL,
			strings.Join(row.Reasons, "; "),
			row.EvaluatedAt.Format("2006-01-02T15:04:05Z07:00"),
			strconv.FormatInt(row.Duration.Microseconds(), 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}
	return nil
}

func exportJSON(rows []*store.DecisionRow) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
