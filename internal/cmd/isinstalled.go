package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewIsInstalledCmd creates the is-installed command
func NewIsInstalledCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "is-installed [package] [version]",
		Short: "Check whether a package is installed",
		Long: `Print the installed version and exit 0 when the package is installed; exit nonzero otherwise.
With a version argument, exit 0 only when the installed version is equal to it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := context.Background()

			layout := paths.NewResolver(cfg)

			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("failed to open database: %v", err)
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			rec, err := database.Get(ctx, name)
			if err != nil {
				if errors.Is(err, db.ErrNotInstalled) {
					if !quiet {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is not installed\n", name)
					}
					return fmt.Errorf("%s is not installed", name)
				}
				ui.PrintError("failed to query database: %v", err)
				return fmt.Errorf("query database: %w", err)
			}

			if len(args) == 2 {
				want := args[1]
				if control.CompareVersions(rec.Version, want) != 0 {
					if !quiet {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s is not installed (installed: %s)\n", name, want, rec.Version)
					}
					return fmt.Errorf("%s %s is not installed", name, want)
				}
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", rec.Name, rec.Version)
			}

			log.Debug().
				Str("package", name).
				Str("version", rec.Version).
				Msg("package is installed")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress output, answer through the exit code only")

	return cmd
}
