package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/popgate/popgate/internal/config"
	"github.com/popgate/popgate/internal/manifest"
	"github.com/popgate/popgate/internal/server"
	"github.com/popgate/popgate/internal/store"
)

var (
	port          string
	experiencesIn string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the popgate HTTP server.

The server provides:
  - Beacon endpoint feeding browser events into per-visitor sessions
  - The pg.js collector script
  - Experience and decision APIs
  - Health check endpoint

Example:
  popgate serve --port 8080 --experiences experiences.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (default from POPGATE_PORT or 8080)")
	serveCmd.Flags().StringVarP(&experiencesIn, "experiences", "e", "", "YAML manifest to register at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := buildServer()
	if err != nil {
		return err
	}
	return srv.Start()
}

// buildServer assembles configuration, storage and the HTTP server. A
// database that cannot be opened degrades to an in-memory store with a
// warning: capping stays session-correct, persistence is lost.
func buildServer() (*server.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", port)
		}
		cfg.Port = p
	}
	if experiencesIn != "" {
		cfg.Experiences = experiencesIn
	}

	var st store.Store
	sqlStore, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Warn("failed to open database, using in-memory store", "path", cfg.DBPath, "error", err)
		st = store.NewMemoryStore()
	} else {
		st = sqlStore
	}

	if cfg.Experiences != "" {
		exps, err := manifest.Load(cfg.Experiences)
		if err != nil {
			return nil, err
		}
		ctx := context.Background()
		for _, exp := range exps {
			row := store.Experience{
				ID:        exp.ID,
				Kind:      string(exp.Kind),
				Priority:  exp.Priority,
				Targeting: exp.Targeting,
				Content:   exp.Content,
				Frequency: exp.Frequency,
			}
			if err := st.UpsertExperience(ctx, &row); err != nil {
				return nil, fmt.Errorf("failed to register %q: %w", exp.ID, err)
			}
		}
		slog.Info("registered experiences from manifest", "path", cfg.Experiences, "count", len(exps))
	}

	return server.New(st, cfg, slog.Default()), nil
}

func getEnvPort() int {
	if p := os.Getenv("POPGATE_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			return parsed
		}
	}
	return 8080
}
