package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quantmind-br/ipkg/internal/archive"
	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/quantmind-br/ipkg/internal/installer"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/resolver"
	"github.com/quantmind-br/ipkg/internal/security"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var (
		assumeYes   bool
		timeoutSecs int
	)

	cmd := &cobra.Command{
		Use:   "install [package]...",
		Short: "Install packages",
		Long:  `Resolve each package and its dependencies against the index, then install the plan. Arguments are package names or paths of local .ipk archives.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Strs("targets", args).
				Bool("assume_yes", assumeYes).
				Msg("starting install")

			// Create context with timeout
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
			defer cancel()

			layout := paths.NewResolver(cfg)

			// Initialize database
			database, err := db.New(ctx, layout.DBFile())
			if err != nil {
				ui.PrintError("failed to open database: %v", err)
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close()

			// Load the cached index snapshot
			manager, err := index.NewManager(afero.NewOsFs(), layout.FeedsFile(), layout.CacheFile(), log)
			if err != nil {
				ui.PrintError("failed to open index cache: %v", err)
				return fmt.Errorf("open index cache: %w", err)
			}
			defer manager.Close()

			if err := manager.Load(ctx); err != nil {
				ui.PrintError("failed to load index: %v", err)
				ui.PrintInfo("Run 'ipkg update' to build the index")
				return fmt.Errorf("load index: %w", err)
			}

			// Targets install one at a time; a failure aborts the rest,
			// earlier targets stay installed.
			for _, target := range args {
				if err := installOne(ctx, cfg, layout, database, manager, log, target, assumeYes); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "apply the plan without asking for confirmation")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 600, "installation timeout in seconds")

	return cmd
}

// installOne resolves and applies a single target against the current
// installed state. The database snapshot is taken fresh so earlier targets
// in the same invocation are seen as installed.
func installOne(ctx context.Context, cfg *config.Config, layout *paths.Resolver, database *db.DB, manager *index.Manager, log *zerolog.Logger, target string, assumeYes bool) error {
	req, err := buildRequest(target)
	if err != nil {
		ui.PrintError("%v", err)
		return err
	}

	installed, err := database.Snapshot(ctx)
	if err != nil {
		ui.PrintError("failed to read installed packages: %v", err)
		return fmt.Errorf("read installed packages: %w", err)
	}

	pol := resolver.Policy{}
	if cfg.Resolver.UpgradePolicy == "highest" {
		pol.Upgrade = resolver.UpgradeHighest
	}

	plan, err := resolver.Resolve(req, manager.Snapshot(), installed, pol, log)
	if err != nil {
		ui.PrintError("%v", err)
		return fmt.Errorf("resolve %s: %w", target, err)
	}

	printPlan(plan)

	if plan.Changes() == 0 {
		ui.PrintSuccess("Nothing to do: %s is installed and satisfied", req.Name)
		return nil
	}

	if !assumeYes {
		confirmed, err := ui.ConfirmPrompt(fmt.Sprintf("Apply %d change(s)", plan.Changes()))
		if err != nil || !confirmed {
			ui.PrintWarning("Install cancelled")
			return nil
		}
	}

	ins := installer.New(installer.Options{
		Root:           layout.Root(),
		StagingDir:     layout.StagingDir(),
		LockPath:       layout.LockFile(),
		LockTimeout:    cfg.Install.LockTimeout,
		StagingTimeout: cfg.Install.StagingTimeout,
		MinFreeBytes:   cfg.Install.MinFreeMB * 1024 * 1024,
	}, database, manager, log)

	bar := ui.NewProgressBar(int64(len(plan.Actions)), "Applying plan")
	ins.OnProgress = func(action resolver.Action, current, total int) {
		bar.Describe(fmt.Sprintf("%s %s", action.Op, action.Record.Name))
		_ = bar.Add(1)
	}

	report, err := ins.Apply(ctx, plan)
	_ = bar.Finish()

	printReport(report)

	if err != nil {
		return fmt.Errorf("install %s: %w", target, err)
	}

	log.Info().
		Str("target", target).
		Int("changed", report.Changed()).
		Msg("install completed successfully")

	return nil
}

// buildRequest turns the install argument into a resolve request. A path to
// a readable .ipk archive pins that exact archive; anything else is treated
// as a package name to resolve from the index.
func buildRequest(target string) (resolver.Request, error) {
	if strings.HasSuffix(target, ".ipk") {
		if _, err := os.Stat(target); err != nil {
			return resolver.Request{}, fmt.Errorf("archive not found: %s", target)
		}
		rec, err := archive.ReadControl(target)
		if err != nil {
			return resolver.Request{}, fmt.Errorf("read archive %s: %w", target, err)
		}
		return resolver.ByRecord(rec), nil
	}

	if err := security.ValidatePackageName(target); err != nil {
		return resolver.Request{}, err
	}
	return resolver.ByName(target), nil
}

// printPlan displays the resolved plan before it is applied
func printPlan(plan *resolver.Plan) {
	ui.PrintHeader("Plan")
	for _, action := range plan.Actions {
		verb := ui.ColorizeAction(string(action.Op))
		if action.Op == resolver.OpUpgrade {
			fmt.Printf("  %s %s %s -> %s\n", verb, action.Record.Name, action.Prior.Version, action.Record.Version)
			continue
		}
		fmt.Printf("  %s %s %s\n", verb, action.Record.Name, action.Record.Version)
	}
	fmt.Println()
}

// printReport displays the outcome of an applied plan
func printReport(report *installer.CommitReport) {
	if report.OK() {
		ui.PrintSuccess("Committed %d change(s)", report.Changed())
		return
	}

	failed := report.Failed
	ui.PrintError("%s %s failed: %v", failed.Action.Op, failed.Action.Record.Name, failed.Err)

	if report.Changed() > 0 {
		ui.PrintWarning("%d earlier change(s) were already committed and remain in place", report.Changed())
	}
	if len(report.Skipped) > 0 {
		names := make([]string, 0, len(report.Skipped))
		for _, action := range report.Skipped {
			names = append(names, action.Record.Name)
		}
		ui.PrintWarning("Skipped: %s", strings.Join(names, ", "))
	}
}
