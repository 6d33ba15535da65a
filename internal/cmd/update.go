package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewUpdateCmd creates the update command
func NewUpdateCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Refresh the package index",
		Long:  `Parse every configured feed document and replace the index snapshot. A malformed feed keeps the previous snapshot in effect.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			layout := paths.NewResolver(cfg)

			log.Info().
				Str("feeds_file", layout.FeedsFile()).
				Str("cache_file", layout.CacheFile()).
				Msg("refreshing package index")

			manager, err := index.NewManager(afero.NewOsFs(), layout.FeedsFile(), layout.CacheFile(), log)
			if err != nil {
				ui.PrintError("failed to open index cache: %v", err)
				return fmt.Errorf("open index cache: %w", err)
			}
			defer manager.Close()

			bar := ui.NewIndeterminateProgressBar("Reading feeds")
			err = manager.Refresh(ctx)
			_ = bar.Clear()
			if err != nil {
				var malformed *index.MalformedError
				if errors.As(err, &malformed) {
					ui.PrintError("feed %q is malformed: %v", malformed.Feed, malformed.Err)
					ui.PrintInfo("The previous index snapshot remains in effect")
				} else {
					ui.PrintError("index refresh failed: %v", err)
				}
				return fmt.Errorf("refresh index: %w", err)
			}

			idx := manager.Snapshot()
			ui.PrintSuccess("Index refreshed: %d package records", idx.Len())

			log.Info().Int("records", idx.Len()).Msg("index refresh complete")
			return nil
		},
	}

	return cmd
}
