package resolver

import (
	"fmt"
	"strings"

	"github.com/quantmind-br/ipkg/internal/control"
)

// Requirement is one constraint on a package name together with who imposed
// it. By is empty for the request itself.
type Requirement struct {
	Dep control.Dependency
	By  string
}

func (r Requirement) String() string {
	if r.By == "" {
		return fmt.Sprintf("%s (requested)", r.Dep)
	}
	return fmt.Sprintf("%s (required by %s)", r.Dep, r.By)
}

// UnresolvableError reports a dependency no candidate and no installed
// version can satisfy. Nothing has been mutated when it is returned.
type UnresolvableError struct {
	Name         string
	Requirements []Requirement
	// Candidates is how many versions the index offers for Name. Zero
	// means the name is entirely unknown.
	Candidates int
	// Installed is the installed version that also failed the
	// requirements, empty when the package is not installed.
	Installed string
}

func (e *UnresolvableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot resolve %s: ", e.Name)
	if e.Candidates == 0 {
		b.WriteString("no available candidates")
	} else {
		fmt.Fprintf(&b, "none of %d candidate versions satisfies %s", e.Candidates, joinRequirements(e.Requirements))
	}
	if e.Installed != "" {
		fmt.Fprintf(&b, " (installed %s does not satisfy them either)", e.Installed)
	}
	return b.String()
}

// ConflictError reports two accumulated constraints on one name that no
// version could satisfy at once. Nothing has been mutated when it is
// returned.
type ConflictError struct {
	Name   string
	First  Requirement
	Second Requirement
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting constraints on %s: %s vs %s", e.Name, e.First, e.Second)
}

func joinRequirements(reqs []Requirement) string {
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// classify turns a dead end on name into the right error: a ConflictError
// when two constraints exclude each other, an UnresolvableError otherwise.
func classify(name string, reqs []Requirement, candidates int, installed string) error {
	for i := 0; i < len(reqs); i++ {
		for j := i + 1; j < len(reqs); j++ {
			if mutuallyExclusive(reqs[i].Dep, reqs[j].Dep) {
				return &ConflictError{Name: name, First: reqs[i], Second: reqs[j]}
			}
		}
	}
	return &UnresolvableError{Name: name, Requirements: reqs, Candidates: candidates, Installed: installed}
}

// mutuallyExclusive reports whether no version at all could satisfy both
// constraints. Bounds pointing the same way never exclude each other; an
// exact pin excludes whatever rejects its version; opposing bounds exclude
// each other when they fail to overlap.
func mutuallyExclusive(a, b control.Dependency) bool {
	if a.Op == control.OpAny || b.Op == control.OpAny {
		return false
	}
	if a.Op == control.OpEqual {
		return !b.Satisfies(a.Version)
	}
	if b.Op == control.OpEqual {
		return !a.Satisfies(b.Version)
	}

	aLower := a.Op == control.OpAtLeast || a.Op == control.OpGreater
	bLower := b.Op == control.OpAtLeast || b.Op == control.OpGreater
	if aLower == bLower {
		return false
	}

	lower, upper := a, b
	if bLower {
		lower, upper = b, a
	}
	switch c := control.CompareVersions(lower.Version, upper.Version); {
	case c > 0:
		return true
	case c < 0:
		return false
	default:
		// Bounds meet in a single point; a strict end empties the range.
		return lower.Op == control.OpGreater || upper.Op == control.OpLess
	}
}
