package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/fsops"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// staleIndexAge is how old a cached index may grow before doctor suggests
// an update.
const staleIndexAge = 7 * 24 * time.Hour

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and data integrity",
		Long:  `Check the configuration, feeds, index cache, database, and install root, and report anything that would make installs fail.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ui.PrintHeader("System Diagnostics")
			fmt.Println()

			fs := afero.NewOsFs()
			layout := paths.NewResolver(cfg)

			var issues []string
			var warnings []string

			// 1. Configuration
			ui.PrintSubheader("Configuration")
			ui.PrintSuccess("Install root: %s", layout.Root())
			ui.PrintSuccess("Upgrade policy: %s", cfg.Resolver.UpgradePolicy)

			fmt.Println()

			// 2. Install root
			ui.PrintSubheader("Install Root")
			if err := checkWritableDir(fs, layout.Root()); err != nil {
				ui.PrintError("Install root: NOT WRITABLE (%v)", err)
				issues = append(issues, fmt.Sprintf("Install root not writable: %s", layout.Root()))
			} else {
				ui.PrintSuccess("Install root: writable")
			}

			dirs := []struct {
				path string
				name string
			}{
				{filepath.Dir(layout.DBFile()), "Database directory"},
				{filepath.Dir(layout.CacheFile()), "Cache directory"},
				{filepath.Dir(layout.LockFile()), "Lock directory"},
			}
			for _, dir := range dirs {
				if err := checkWritableDir(fs, dir.path); err != nil {
					ui.PrintError("%s: NOT ACCESSIBLE (%s)", dir.name, dir.path)
					issues = append(issues, fmt.Sprintf("Directory not accessible: %s", dir.path))
				} else {
					ui.PrintSuccess("%s: %s", dir.name, dir.path)
				}
			}

			fmt.Println()

			// 3. Feeds
			ui.PrintSubheader("Feeds")
			feeds, err := index.LoadFeeds(fs, layout.FeedsFile())
			switch {
			case errors.Is(err, os.ErrNotExist):
				ui.PrintWarning("Feeds file missing: %s", layout.FeedsFile())
				warnings = append(warnings, "No feeds configured")
			case err != nil:
				ui.PrintError("Feeds file invalid: %v", err)
				issues = append(issues, fmt.Sprintf("Feeds file invalid: %v", err))
			case len(feeds) == 0:
				ui.PrintWarning("Feeds file lists no feeds")
				warnings = append(warnings, "No feeds configured")
			default:
				ui.PrintSuccess("Feeds configured: %d", len(feeds))
				for _, feed := range feeds {
					if fsops.Exists(fs, feed.Path) {
						ui.PrintSuccess("%s: %s", feed.Name, feed.Path)
					} else {
						ui.PrintWarning("%s: document missing (%s)", feed.Name, feed.Path)
						warnings = append(warnings, fmt.Sprintf("Feed document missing: %s", feed.Path))
					}
				}
			}

			fmt.Println()

			// 4. Index cache
			ui.PrintSubheader("Index Cache")
			if !fsops.Exists(fs, layout.CacheFile()) {
				ui.PrintWarning("Index cache missing: run 'ipkg update'")
				warnings = append(warnings, "Index cache missing")
			} else {
				manager, err := index.NewManager(fs, layout.FeedsFile(), layout.CacheFile(), log)
				if err != nil {
					ui.PrintError("Index cache: NOT READABLE (%v)", err)
					issues = append(issues, fmt.Sprintf("Cannot open index cache: %v", err))
				} else {
					defer manager.Close()

					refreshed, err := manager.LastRefresh()
					switch {
					case err != nil:
						ui.PrintWarning("Index cache: cannot read refresh time: %v", err)
						warnings = append(warnings, "Index cache refresh time unreadable")
					case refreshed.IsZero():
						ui.PrintWarning("Index cache: never refreshed, run 'ipkg update'")
						warnings = append(warnings, "Index never refreshed")
					case time.Since(refreshed) > staleIndexAge:
						ui.PrintWarning("Index cache: last refreshed %s, run 'ipkg update'", refreshed.Format("2006-01-02"))
						warnings = append(warnings, "Index cache is stale")
					default:
						ui.PrintSuccess("Index cache: refreshed %s", refreshed.Format("2006-01-02 15:04"))
					}
				}
			}

			fmt.Println()

			// 5. Database
			ui.PrintSubheader("Database")
			ctx := context.Background()
			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("Database: NOT ACCESSIBLE")
				issues = append(issues, fmt.Sprintf("Cannot open database: %v", err))
			} else {
				ui.PrintSuccess("Database: accessible (%s)", layout.DBFile())
				defer database.Close()

				entries, err := database.List(ctx)
				if err != nil {
					ui.PrintWarning("Cannot list installed packages: %v", err)
					warnings = append(warnings, "Cannot list installed packages")
				} else {
					ui.PrintInfo("Installed packages: %d", len(entries))

					if verbose {
						broken := checkFileIntegrity(layout.Root(), entries)
						if len(broken) > 0 {
							ui.PrintWarning("Found %d package(s) with missing files:", len(broken))
							ui.PrintList(broken)
							warnings = append(warnings, fmt.Sprintf("%d packages have missing files", len(broken)))
						} else {
							ui.PrintSuccess("All installed packages have intact files")
						}
					}
				}
			}

			fmt.Println()

			// Summary
			ui.PrintHeader("Summary")
			fmt.Println()

			if len(issues) == 0 {
				ui.PrintSuccess("All critical checks passed!")
			} else {
				ui.PrintError("Found %d issue(s):", len(issues))
				ui.PrintList(issues)
				fmt.Println()
			}

			if len(warnings) > 0 {
				ui.PrintWarning("Found %d warning(s):", len(warnings))
				ui.PrintList(warnings)
			}

			fmt.Println()

			if len(issues) > 0 {
				return fmt.Errorf("system check failed with %d issue(s)", len(issues))
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output with file integrity checks")

	return cmd
}

// checkWritableDir verifies a directory exists (creating it if missing) and
// accepts writes.
func checkWritableDir(fs afero.Fs, path string) error {
	if err := fsops.EnsureDir(fs, path, 0755); err != nil {
		return err
	}
	return fsops.CheckWritable(fs, path)
}

// checkFileIntegrity reports installed packages whose recorded files are
// missing from the root.
func checkFileIntegrity(root string, entries []db.Entry) []string {
	var broken []string

	for _, entry := range entries {
		for _, file := range entry.Files {
			if _, err := os.Stat(filepath.Join(root, file)); os.IsNotExist(err) {
				broken = append(broken, fmt.Sprintf("%s (missing %s)", entry.Name, file))
				break
			}
		}
	}

	return broken
}
