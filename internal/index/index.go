// Package index maintains the repository index: feed documents parsed into
// an immutable in-memory snapshot, refreshed by atomic replacement and backed
// by an on-disk cache so the last good index survives restarts.
package index

import (
	"fmt"
	"sort"

	"github.com/quantmind-br/ipkg/internal/control"
)

// MalformedError reports a feed document that failed to parse during a
// refresh. The previous snapshot stays in effect when it occurs.
type MalformedError struct {
	Feed string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed feed %q: %v", e.Feed, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Index is an immutable snapshot of every feed. Lookups are safe from any
// goroutine; a refresh never mutates an existing Index.
type Index struct {
	byName map[string][]*control.Record
	count  int
}

// New builds a snapshot from parsed records. Candidate lists are ordered
// version-descending; records comparing equal keep a stable order by raw
// version text so repeated builds agree.
func New(records []*control.Record) *Index {
	byName := make(map[string][]*control.Record)
	for _, rec := range records {
		byName[rec.Name] = append(byName[rec.Name], rec)
	}
	for _, candidates := range byName {
		sort.SliceStable(candidates, func(i, j int) bool {
			if c := control.CompareVersions(candidates[i].Version, candidates[j].Version); c != 0 {
				return c > 0
			}
			return candidates[i].Version > candidates[j].Version
		})
	}
	return &Index{byName: byName, count: len(records)}
}

// Candidates returns every known version of a package, newest first. The
// returned slice is shared and must not be modified. Nil when the name is
// unknown.
func (ix *Index) Candidates(name string) []*control.Record {
	return ix.byName[name]
}

// Best returns the highest-version candidate, or nil for unknown names.
func (ix *Index) Best(name string) *control.Record {
	if candidates := ix.byName[name]; len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

// Names returns every package name in the snapshot, sorted.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.byName))
	for name := range ix.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of records across all candidate lists.
func (ix *Index) Len() int { return ix.count }
