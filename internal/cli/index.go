package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Geethen/lidR/catalog"
	"github.com/Geethen/lidR/pointfile"
)

type indexFlags struct {
	catalogDir string
	rebuild    bool
	stats      bool
}

// NewIndexCommand creates the "index" command: inspect or rebuild the
// catalog's sidecar tile index.
func NewIndexCommand() *cobra.Command {
	flags := &indexFlags{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or rebuild the catalog's sidecar tile index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&flags.catalogDir, "catalog", "", "catalog directory (required)")
	cmd.Flags().BoolVar(&flags.rebuild, "rebuild", false, "discard the sidecar index and rebuild from tile headers")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "print tile and point counts")
	cmd.MarkFlagRequired("catalog")
	return cmd
}

func runIndex(cmd *cobra.Command, flags *indexFlags) error {
	log := newLogger(logLevel)
	ctx := cmd.Context()

	if flags.rebuild {
		if err := catalog.InvalidateIndex(flags.catalogDir); err != nil {
			return err
		}
	}
	cat, err := catalog.Open(ctx, flags.catalogDir, pointfile.NewStore(), catalog.WithLogger(log))
	if err != nil {
		return err
	}

	if !flags.stats {
		log.Info("index up to date", "dir", cat.Dir(), "tiles", cat.Index().Len())
		return nil
	}
	summary, err := cat.Summarize(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
