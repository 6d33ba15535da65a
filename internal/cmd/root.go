package cmd

import (
	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd(cfg *config.Config, log *zerolog.Logger, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "ipkg",
		Short:        "Lightweight package manager",
		Long:         `An opkg-style package manager: feed indexes, dependency resolution, and transactional installs into a configurable root.`,
		SilenceUsage: true,
	}

	// Add subcommands
	cmd.AddCommand(NewUpdateCmd(cfg, log))
	cmd.AddCommand(NewInstallCmd(cfg, log))
	cmd.AddCommand(NewRemoveCmd(cfg, log))
	cmd.AddCommand(NewIsInstalledCmd(cfg, log))
	cmd.AddCommand(NewListCmd(cfg, log))
	cmd.AddCommand(NewInfoCmd(cfg, log))
	cmd.AddCommand(NewSearchCmd(cfg, log))
	cmd.AddCommand(NewDoctorCmd(cfg, log))
	cmd.AddCommand(NewCompletionCmd(cfg, log))
	cmd.AddCommand(NewVersionCmd(version))

	return cmd
}
