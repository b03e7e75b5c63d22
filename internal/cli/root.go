// Package cli implements the cobra commands of the lidr catalog tool. Each
// subcommand (query, retile, index, serve) lives in its own file; this file
// holds the root command and the helpers shared by all of them.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var logLevel string

// NewRootCommand builds the root command with every subcommand registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lidr",
		Short: "Manage and query catalogs of spatially tiled point-cloud files",
		Long: `lidr manages a catalog of on-disk point-cloud tiles. It extracts the
points covering circular or rectangular regions of interest, merging data
that spans several tiles and tagging buffer zones, and re-partitions a whole
catalog into a new tiling.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(NewQueryCommand())
	rootCmd.AddCommand(NewRetileCommand())
	rootCmd.AddCommand(NewIndexCommand())
	rootCmd.AddCommand(NewServeCommand())
	return rootCmd
}

// newLogger builds the process logger the same way for every subcommand:
// JSON handler on stderr with the configured level.
func newLogger(level string) *slog.Logger {
	var programLevel slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		programLevel = slog.LevelDebug
	case "WARN":
		programLevel = slog.LevelWarn
	case "ERROR":
		programLevel = slog.LevelError
	default:
		programLevel = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level:     programLevel,
		AddSource: programLevel <= slog.LevelDebug,
	}).WithAttrs([]slog.Attr{slog.String("app", "lidr")})
	return slog.New(handler)
}
