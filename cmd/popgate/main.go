package main

import (
	"log/slog"
	"os"

	"github.com/popgate/popgate/internal/cli"
)

func main() {
	level := slog.LevelInfo
	if os.Getenv("POPGATE_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
