package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/store"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a registered experience",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	return withStore(func(s *store.SQLiteStore) error {
		err := s.DeleteExperience(context.Background(), id)
		if err == store.ErrNotFound {
			return fmt.Errorf("experience '%s' not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to delete experience: %w", err)
		}
		fmt.Printf("Deleted experience '%s'\n", id)
		return nil
	})
}
