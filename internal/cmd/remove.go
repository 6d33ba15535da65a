package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/installer"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		force     bool
		assumeYes bool
	)

	cmd := &cobra.Command{
		Use:     "remove [package]",
		Aliases: []string{"uninstall"},
		Short:   "Remove an installed package",
		Long:    `Delete a package's files from the install root and drop its database row. Removal is refused while other installed packages depend on it.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := context.Background()

			log.Info().
				Str("package", name).
				Bool("force", force).
				Msg("starting removal")

			layout := paths.NewResolver(cfg)

			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("failed to open database: %v", err)
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			entry, err := database.GetEntry(ctx, name)
			if err != nil {
				if errors.Is(err, db.ErrNotInstalled) {
					ui.PrintError("package not installed: %s", name)
					ui.PrintInfo("Use 'ipkg list' to see installed packages")
					return fmt.Errorf("package not installed: %s", name)
				}
				ui.PrintError("failed to query database: %v", err)
				return fmt.Errorf("query database: %w", err)
			}

			if !assumeYes {
				target := fmt.Sprintf("%s %s (%d files)", entry.Name, entry.Version, len(entry.Files))
				confirmed, err := ui.ConfirmDangerousAction("remove", target)
				if err != nil || !confirmed {
					ui.PrintWarning("Removal cancelled")
					return nil
				}
			}

			ins := installer.New(installer.Options{
				Root:        layout.Root(),
				StagingDir:  layout.StagingDir(),
				LockPath:    layout.LockFile(),
				LockTimeout: cfg.Install.LockTimeout,
			}, database, nil, log)

			if err := ins.Remove(ctx, name, force); err != nil {
				var dependents *installer.DependentsError
				if errors.As(err, &dependents) {
					ui.PrintError("%s is still required by:", name)
					ui.PrintList(dependents.Dependents)
					ui.PrintInfo("Remove the dependents first, or pass --force")
					return err
				}
				ui.PrintError("removal failed: %v", err)
				return fmt.Errorf("remove %s: %w", name, err)
			}

			ui.PrintSuccess("Package removed: %s", name)

			log.Info().
				Str("package", name).
				Msg("removal completed successfully")

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "remove even while other packages depend on it")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "remove without asking for confirmation")

	return cmd
}
