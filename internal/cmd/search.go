package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/quantmind-br/ipkg/internal/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// NewSearchCmd creates the search command
func NewSearchCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	var descriptions bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the package index",
		Long:  `Fuzzy-search package names in the index. With -d the match widens to package descriptions.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]
			ctx := context.Background()

			layout := paths.NewResolver(cfg)

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

			idx := manager.Snapshot()
			matches := searchIndex(idx, query, descriptions)

			if len(matches) == 0 {
				ui.PrintWarning("No packages match %q", query)
				return nil
			}

			log.Debug().
				Str("query", query).
				Int("matches", len(matches)).
				Msg("search complete")

			printSearchResults(cmd, idx, matches)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&descriptions, "descriptions", "d", false, "also match against package descriptions")

	return cmd
}

// searchIndex returns matching package names, best matches first.
func searchIndex(idx *index.Index, query string, descriptions bool) []string {
	names := idx.Names()

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)

	matched := make([]string, 0, len(ranks))
	seen := make(map[string]bool, len(ranks))
	for _, rank := range ranks {
		matched = append(matched, rank.Target)
		seen[rank.Target] = true
	}

	if !descriptions {
		return matched
	}

	// Description matches rank behind every name match
	lowered := strings.ToLower(query)
	for _, name := range names {
		if seen[name] {
			continue
		}
		best := idx.Best(name)
		if best != nil && strings.Contains(strings.ToLower(best.Description), lowered) {
			matched = append(matched, name)
		}
	}

	return matched
}

// printSearchResults renders matched packages as a table
func printSearchResults(cmd *cobra.Command, idx *index.Index, names []string) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Name", "Version", "Description"}),
		tablewriter.WithAlignment(tw.MakeAlign(3, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, name := range names {
		best := idx.Best(name)
		if best == nil {
			continue
		}

		description := best.Description
		if len(description) > 60 {
			description = description[:57] + "..."
		}

		table.Append(name, best.Version, description)
	}

	table.Render()
}
