package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
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

// NewListCmd creates the list command
func NewListCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		jsonOutput  bool
		filterName  string
		autoOnly    bool
		sortBy      string
		showDetails bool
		available   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Long:  `List all installed packages with filtering and sorting options.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			layout := paths.NewResolver(cfg)

			if available {
				return listAvailable(ctx, cmd, layout, log, filterName, jsonOutput)
			}

			// Open database
			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("failed to open database: %v", err)
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			// List installed entries
			entries, err := database.List(ctx)
			if err != nil {
				ui.PrintError("failed to list packages: %v", err)
				return fmt.Errorf("list packages: %w", err)
			}

			// Apply filters
			filtered := filterEntries(entries, filterName, autoOnly)

			// Apply sorting
			sortEntries(filtered, sortBy)

			// JSON output
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(filtered)
			}

			// Check if empty
			if len(filtered) == 0 {
				if filterName != "" || autoOnly {
					ui.PrintWarning("No packages found matching filters")
				} else {
					ui.PrintInfo("No packages installed")
				}
				return nil
			}

			// Print summary
			printListSummary(entries, filtered, filterName, autoOnly)

			// Table output
			if showDetails {
				printDetailedTable(cmd, filtered)
			} else {
				printCompactTable(cmd, filtered)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&filterName, "name", "", "filter by package name (partial match)")
	cmd.Flags().BoolVar(&autoOnly, "auto", false, "show only automatically installed packages")
	cmd.Flags().StringVar(&sortBy, "sort", "name", "sort by: name, date, version")
	cmd.Flags().BoolVarP(&showDetails, "details", "d", false, "show detailed information")
	cmd.Flags().BoolVar(&available, "available", false, "list packages available from the feeds instead of installed ones")

	return cmd
}

// listAvailable renders the feed index instead of the installed set. Only the
// best candidate per name is shown.
func listAvailable(ctx context.Context, cmd *cobra.Command, layout *paths.Resolver, log *zerolog.Logger, filterName string, jsonOutput bool) error {
	manager, err := index.NewManager(afero.NewOsFs(), layout.FeedsFile(), layout.CacheFile(), log)
	if err != nil {
		ui.PrintError("failed to open package index: %v", err)
		return fmt.Errorf("open index: %w", err)
	}
	defer manager.Close()

	if err := manager.Load(ctx); err != nil {
		ui.PrintError("failed to load package index: %v", err)
		return fmt.Errorf("load index: %w", err)
	}

	snapshot := manager.Snapshot()
	records := make([]*control.Record, 0, snapshot.Len())
	for _, name := range snapshot.Names() {
		if filterName != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(filterName)) {
			continue
		}
		records = append(records, snapshot.Best(name))
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		ui.PrintInfo("No packages available; run 'ipkg update' first")
		return nil
	}

	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Name", "Version", "Feed", "Description"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, rec := range records {
		table.Append(rec.Name, rec.Version, rec.Source, rec.Description)
	}

	table.Render()
	return nil
}

// filterEntries filters entries by name and install reason
func filterEntries(entries []db.Entry, filterName string, autoOnly bool) []db.Entry {
	filtered := make([]db.Entry, 0)

	for _, entry := range entries {
		// Filter by name (case-insensitive partial match)
		if filterName != "" && !strings.Contains(strings.ToLower(entry.Name), strings.ToLower(filterName)) {
			continue
		}

		if autoOnly && !entry.Auto {
			continue
		}

		filtered = append(filtered, entry)
	}

	return filtered
}

// sortEntries sorts entries by the specified field
func sortEntries(entries []db.Entry, sortBy string) {
	switch strings.ToLower(sortBy) {
	case "date":
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].InstalledAt.After(entries[j].InstalledAt)
		})
	case "version":
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Version == entries[j].Version {
				return entries[i].Name < entries[j].Name
			}
			return entries[i].Version < entries[j].Version
		})
	default:
		// Default to name
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Name < entries[j].Name
		})
	}
}

// printListSummary prints a summary of installed packages
func printListSummary(all, filtered []db.Entry, filterName string, autoOnly bool) {
	autoCount := 0
	for _, entry := range all {
		if entry.Auto {
			autoCount++
		}
	}

	ui.PrintHeader("Installed Packages")

	fmt.Printf("Total: %d packages (%d installed as dependencies)", len(all), autoCount)
	if len(filtered) != len(all) {
		fmt.Printf(" (showing %d filtered)", len(filtered))
	}
	fmt.Println()

	// Print active filters
	if filterName != "" || autoOnly {
		fmt.Println()
		ui.PrintInfo("Active filters:")
		if filterName != "" {
			fmt.Printf("  • Name: %s\n", filterName)
		}
		if autoOnly {
			fmt.Printf("  • Automatically installed only\n")
		}
	}

	fmt.Println()
}

// installReason renders the Auto column
func installReason(entry db.Entry) string {
	if entry.Auto {
		return "auto"
	}
	return "manual"
}

// printCompactTable prints a compact table view
func printCompactTable(cmd *cobra.Command, entries []db.Entry) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Name", "Version", "Reason", "Install Date"}),
		tablewriter.WithAlignment(tw.MakeAlign(4, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, entry := range entries {
		table.Append(
			entry.Name,
			entry.Version,
			installReason(entry),
			entry.InstalledAt.Format("2006-01-02 15:04"),
		)
	}

	table.Render()
}

// printDetailedTable prints a detailed table view
func printDetailedTable(cmd *cobra.Command, entries []db.Entry) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Name", "Version", "Reason", "Install Date", "Files", "Description"}),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, entry := range entries {
		// Truncate description if too long
		description := entry.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}

		table.Append(
			entry.Name,
			entry.Version,
			installReason(entry),
			entry.InstalledAt.Format("2006-01-02"),
			fmt.Sprintf("%d", len(entry.Files)),
			description,
		)
	}

	table.Render()
}
