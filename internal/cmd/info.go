package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command
func NewInfoCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info [package]",
		Short: "Show package information",
		Long:  `Show detailed information about a package: the installed entry when present, otherwise the best index candidate.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ctx := context.Background()

			layout := paths.NewResolver(cfg)

			// Open database
			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("failed to open database: %v", err)
				return fmt.Errorf("open database: %w", err)
			}
			defer func() { _ = database.Close() }()

			entry, err := database.GetEntry(ctx, name)
			if err == nil {
				printInstalledInfo(entry)

				log.Info().
					Str("package", name).
					Str("version", entry.Version).
					Msg("displayed installed package info")

				return nil
			}
			if !errors.Is(err, db.ErrNotInstalled) {
				ui.PrintError("failed to query database: %v", err)
				return fmt.Errorf("query database: %w", err)
			}

			// Not installed: fall back to the index
			log.Debug().
				Str("package", name).
				Msg("not installed, trying the index")

			manager, err := index.NewManager(afero.NewOsFs(), layout.FeedsFile(), layout.CacheFile(), log)
			if err != nil {
				ui.PrintError("failed to open index cache: %v", err)
				return fmt.Errorf("open index cache: %w", err)
			}
			defer manager.Close()

			if err := manager.Load(ctx); err != nil {
				ui.PrintError("package not found: %s", name)
				ui.PrintInfo("Run 'ipkg update' to build the index")
				return fmt.Errorf("package not found: %s", name)
			}

			rec := manager.Snapshot().Best(name)
			if rec == nil {
				ui.PrintError("package not found: %s", name)
				ui.PrintInfo("Use 'ipkg search' to look for similar names")
				return fmt.Errorf("package not found: %s", name)
			}

			printCandidateInfo(rec, manager.Snapshot().Candidates(name))
			return nil
		},
	}

	return cmd
}

// printInstalledInfo displays an installed package entry
func printInstalledInfo(entry *db.Entry) {
	ui.PrintHeader(fmt.Sprintf("Package: %s", entry.Name))
	fmt.Println()

	ui.PrintKeyValue("Name", entry.Name)
	ui.PrintKeyValue("Version", entry.Version)
	printRecordDetails(&entry.Record)
	ui.PrintKeyValue("Status", "installed")
	ui.PrintKeyValue("Installed At", entry.InstalledAt.Format("2006-01-02 15:04:05"))
	ui.PrintKeyValue("Install Reason", installReason(*entry))

	if len(entry.Files) > 0 {
		fmt.Println()
		ui.PrintSubheader(fmt.Sprintf("Files (%d)", len(entry.Files)))
		ui.PrintList(entry.Files)
	}

	fmt.Println()
}

// printCandidateInfo displays an index record for a package that is not
// installed, along with the other available versions.
func printCandidateInfo(rec *control.Record, candidates []*control.Record) {
	ui.PrintHeader(fmt.Sprintf("Package: %s", rec.Name))
	fmt.Println()

	ui.PrintKeyValue("Name", rec.Name)
	ui.PrintKeyValue("Version", rec.Version)
	printRecordDetails(rec)
	ui.PrintKeyValue("Status", "not installed")
	if rec.Source != "" {
		ui.PrintKeyValue("Feed", rec.Source)
	}
	if rec.Size > 0 {
		ui.PrintKeyValue("Archive Size", fmt.Sprintf("%d bytes", rec.Size))
	}
	if rec.InstalledSize > 0 {
		ui.PrintKeyValue("Installed Size", fmt.Sprintf("%d KiB", rec.InstalledSize))
	}

	if len(candidates) > 1 {
		versions := make([]string, 0, len(candidates))
		for _, c := range candidates {
			versions = append(versions, c.Version)
		}
		fmt.Println()
		ui.PrintSubheader("Available Versions")
		ui.PrintList(versions)
	}

	fmt.Println()
}

// printRecordDetails prints the fields shared by installed entries and index
// candidates.
func printRecordDetails(rec *control.Record) {
	if rec.Architecture != "" {
		ui.PrintKeyValue("Architecture", rec.Architecture)
	}
	if rec.Section != "" {
		ui.PrintKeyValue("Section", rec.Section)
	}
	if rec.Description != "" {
		ui.PrintKeyValue("Description", rec.Description)
	}
	if len(rec.Depends) > 0 {
		deps := make([]string, 0, len(rec.Depends))
		for _, dep := range rec.Depends {
			deps = append(deps, dep.String())
		}
		ui.PrintKeyValue("Depends", strings.Join(deps, ", "))
	}
	if len(rec.Provides) > 0 {
		ui.PrintKeyValue("Provides", strings.Join(rec.Provides, ", "))
	}
}
