package installer

import (
	"fmt"
	"strings"

	"github.com/quantmind-br/ipkg/internal/resolver"
)

// StagingError reports one action that failed while staging or committing.
// The lock timing out and the free-space preflight failing surface through
// it as well.
type StagingError struct {
	Action string
	Err    error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s: %v", e.Action, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// DependentsError refuses the removal of a package other installed packages
// still depend on.
type DependentsError struct {
	Name       string
	Dependents []string
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s is still required by %s", e.Name, strings.Join(e.Dependents, ", "))
}

// FailedAction pairs the action that stopped an apply with its cause.
type FailedAction struct {
	Action resolver.Action
	Err    error
}

// CommitReport accounts for every action of an applied plan: the committed
// prefix, the action that failed (if any), and the actions abandoned because
// of it. Committed actions stay committed no matter what failed after them.
type CommitReport struct {
	Committed []resolver.Action
	Failed    *FailedAction
	Skipped   []resolver.Action
}

// OK reports whether the whole plan committed.
func (r *CommitReport) OK() bool { return r.Failed == nil }

// Changed counts committed actions that touched the system.
func (r *CommitReport) Changed() int {
	n := 0
	for _, a := range r.Committed {
		if a.Op != resolver.OpKeep {
			n++
		}
	}
	return n
}
