package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/db"
)

// Remove deletes an installed package: its files in reverse record order,
// directories it emptied, then the database row. Installed packages that
// depend on it block the removal unless force is set.
func (ins *Installer) Remove(ctx context.Context, name string, force bool) error {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	unlock, err := ins.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entry, err := ins.db.GetEntry(ctx, name)
	if err != nil {
		return err
	}

	dependents, err := ins.dependentsOf(ctx, entry)
	if err != nil {
		return err
	}
	if len(dependents) > 0 {
		if !force {
			return &DependentsError{Name: name, Dependents: dependents}
		}
		ins.log.Warn().Str("package", name).Strs("dependents", dependents).Msg("Removing despite dependents (forced)")
	}

	for i := len(entry.Files) - 1; i >= 0; i-- {
		target := filepath.Join(ins.root, entry.Files[i])
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			ins.log.Warn().Err(err).Str("file", target).Msg("Failed to remove file")
			continue
		}
		ins.pruneEmptyParents(entry.Files[i])
	}

	if err := ins.db.Remove(ctx, name); err != nil {
		return fmt.Errorf("drop database row: %w", err)
	}
	ins.log.Info().Str("package", name).Str("version", entry.Version).Msg("Removed")
	return nil
}

// dependentsOf lists installed packages whose dependencies would go
// unsatisfied if entry were removed. A dependency on one of entry's names
// does not count when another installed package still satisfies it.
func (ins *Installer) dependentsOf(ctx context.Context, entry *db.Entry) ([]string, error) {
	installed, err := ins.db.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("read installed set: %w", err)
	}
	delete(installed, entry.Name)

	removed := make(map[string]struct{}, 1+len(entry.Provides))
	removed[entry.Name] = struct{}{}
	for _, p := range entry.Provides {
		removed[p] = struct{}{}
	}

	var dependents []string
	for _, other := range installed {
		for _, dep := range other.Depends {
			if _, ok := removed[dep.Name]; !ok {
				continue
			}
			if satisfiedByInstalled(dep, installed) {
				continue
			}
			dependents = append(dependents, other.Name)
			break
		}
	}
	sort.Strings(dependents)
	return dependents, nil
}

// satisfiedByInstalled reports whether some remaining installed package
// meets the dependency, either by name and version or through a provided
// name.
func satisfiedByInstalled(dep control.Dependency, installed map[string]*control.Record) bool {
	for _, rec := range installed {
		if rec.Name == dep.Name && dep.Satisfies(rec.Version) {
			return true
		}
		for _, p := range rec.Provides {
			// Provided names carry no version; only unversioned
			// dependencies match them.
			if p == dep.Name && dep.Op == control.OpAny {
				return true
			}
		}
	}
	return false
}
