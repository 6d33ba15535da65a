// Package resolver plans dependency-closed install transactions. Resolution
// is a pure function over an index snapshot and the installed set: it never
// mutates either, and every error is returned before any change happens
// elsewhere.
package resolver

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/index"
)

// Op is the kind of one planned action.
type Op string

const (
	OpInstall Op = "install"
	OpUpgrade Op = "upgrade"
	OpKeep    Op = "keep"
)

// Action is one step of a plan. Keep actions are recorded no-ops: the
// installed version already satisfies every accumulated constraint, so it
// stays exactly as it is even when the index offers something newer.
type Action struct {
	Op     Op
	Record *control.Record
	// Prior is the installed record an upgrade replaces, and the record
	// being kept for Keep actions' Record itself.
	Prior *control.Record
	// Auto marks actions pulled in as dependencies rather than requested
	// by name. The database keeps the flag for reverse-dependency listings.
	Auto   bool
	Reason string
}

func (a Action) String() string {
	switch a.Op {
	case OpUpgrade:
		return fmt.Sprintf("upgrade %s %s -> %s", a.Record.Name, a.Prior.Version, a.Record.Version)
	case OpKeep:
		return fmt.Sprintf("keep %s %s", a.Record.Name, a.Record.Version)
	default:
		return fmt.Sprintf("install %s %s", a.Record.Name, a.Record.Version)
	}
}

// Plan is an ordered list of actions. A dependency's action always comes
// before the actions of everything that needs it; members of a dependency
// cycle keep their discovery order.
type Plan struct {
	Actions []Action
}

// Changes counts the actions that will touch the system.
func (p *Plan) Changes() int {
	n := 0
	for _, a := range p.Actions {
		if a.Op != OpKeep {
			n++
		}
	}
	return n
}

// Request names what to resolve: a package by name from the index, or a
// concrete record read out of a local archive.
type Request struct {
	Name   string
	Record *control.Record
}

func ByName(name string) Request {
	return Request{Name: name}
}

func ByRecord(rec *control.Record) Request {
	return Request{Name: rec.Name, Record: rec}
}

// UpgradePolicy selects which satisfying version an upgrade moves to.
type UpgradePolicy string

const (
	// UpgradeLowest moves to the lowest satisfying version. The default:
	// an upgrade exists to repair a violated constraint, so it changes as
	// little as possible.
	UpgradeLowest UpgradePolicy = "lowest"
	// UpgradeHighest moves straight to the newest satisfying version.
	UpgradeHighest UpgradePolicy = "highest"
)

// Policy tunes resolution. The zero value is usable.
type Policy struct {
	Upgrade UpgradePolicy
}

func (p Policy) upgrade() UpgradePolicy {
	if p.Upgrade == UpgradeHighest {
		return UpgradeHighest
	}
	return UpgradeLowest
}

// maxRounds caps re-resolution when constraints discovered inside dependency
// cycles invalidate choices made earlier in the walk.
const maxRounds = 8

// Resolve plans the transaction that brings req and its whole dependency
// closure into a satisfied state. installed is a consistent snapshot of the
// database; idx is an immutable index snapshot. New installs take the
// highest satisfying candidate; upgrades follow pol.
func Resolve(req Request, idx *index.Index, installed map[string]*control.Record, pol Policy, log *zerolog.Logger) (*Plan, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("empty resolve request")
	}

	// Constraints only accumulate. When a cycle reveals a constraint after
	// its target was already chosen, the walk runs again with everything
	// known so far pre-seeded; once the constraint set stops growing the
	// remaining violation is permanent.
	carried := make(map[string][]Requirement)
	carriedCount := 0

	for round := 1; round <= maxRounds; round++ {
		w := newWalker(idx, installed, pol, carried)
		if err := w.run(req); err != nil {
			return nil, err
		}

		violated := w.validate()
		if len(violated) == 0 {
			log.Debug().
				Str("package", req.Name).
				Int("round", round).
				Int("actions", len(w.actions)).
				Msg("Resolution complete")
			return &Plan{Actions: w.actions}, nil
		}

		total := 0
		for _, reqs := range w.need {
			total += len(reqs)
		}
		if total == carriedCount || round == maxRounds {
			name := violated[0]
			installedVersion := ""
			if prior := installed[name]; prior != nil {
				installedVersion = prior.Version
			}
			return nil, classify(name, w.need[name], len(idx.Candidates(name)), installedVersion)
		}
		carried = w.need
		carriedCount = total
		log.Debug().Str("package", req.Name).Int("round", round).Strs("violated", violated).Msg("Re-resolving with accumulated constraints")
	}
	return nil, fmt.Errorf("resolution of %s did not converge", req.Name)
}

type visitState int

const (
	statePending visitState = iota
	stateVisiting
	stateDone
)

// walker performs one resolution round: a depth-first walk with an explicit
// per-name status arena, accumulating constraints and emitting actions in
// post-order so dependencies land before their dependents.
type walker struct {
	idx       *index.Index
	installed map[string]*control.Record
	pol       Policy

	status  map[string]visitState
	need    map[string][]Requirement
	outcome map[string]*control.Record
	order   []string
	actions []Action
}

func newWalker(idx *index.Index, installed map[string]*control.Record, pol Policy, carried map[string][]Requirement) *walker {
	need := make(map[string][]Requirement, len(carried))
	for name, reqs := range carried {
		need[name] = append([]Requirement(nil), reqs...)
	}
	return &walker{
		idx:       idx,
		installed: installed,
		pol:       pol,
		status:    make(map[string]visitState),
		need:      need,
		outcome:   make(map[string]*control.Record),
	}
}

func (w *walker) run(req Request) error {
	root := Requirement{Dep: control.Dependency{Name: req.Name}}
	if req.Record != nil {
		return w.visitPinned(req.Record, root)
	}
	return w.visit(root)
}

// visitPinned handles a request backed by a local archive: the record is the
// outcome for its name no matter what the index offers.
func (w *walker) visitPinned(rec *control.Record, root Requirement) error {
	w.require(rec.Name, root)
	w.status[rec.Name] = stateVisiting
	w.order = append(w.order, rec.Name)

	if err := w.walkDeps(rec); err != nil {
		return err
	}
	w.status[rec.Name] = stateDone
	w.outcome[rec.Name] = rec

	prior := w.installed[rec.Name]
	switch {
	case prior != nil && control.CompareVersions(prior.Version, rec.Version) == 0:
		w.emit(Action{Op: OpKeep, Record: prior, Prior: prior, Reason: "already installed"})
	case prior != nil:
		w.emit(Action{
			Op:     OpUpgrade,
			Record: rec,
			Prior:  prior,
			Reason: fmt.Sprintf("replacing installed %s with local archive", prior.Version),
		})
	default:
		w.emit(Action{Op: OpInstall, Record: rec, Reason: "requested from local archive"})
	}
	return nil
}

func (w *walker) visit(reqm Requirement) error {
	name := reqm.Dep.Name
	w.require(name, reqm)

	switch w.status[name] {
	case stateVisiting, stateDone:
		// Already chosen or in progress. The freshly recorded requirement
		// is checked against the outcome after the walk.
		return nil
	}

	w.status[name] = stateVisiting
	w.order = append(w.order, name)

	reqs := w.need[name]
	prior := w.installed[name]

	if prior != nil && satisfiesAll(prior.Version, reqs) {
		// Installed and satisfying stays put, newer candidates or not.
		// Its installed dependencies are walked to confirm the subtree
		// still holds together, not to re-resolve it.
		if err := w.walkDeps(prior); err != nil {
			return err
		}
		w.status[name] = stateDone
		w.outcome[name] = prior
		w.emit(Action{Op: OpKeep, Record: prior, Prior: prior, Auto: reqm.By != "", Reason: keepReason(reqm)})
		return nil
	}

	candidate := w.pickCandidate(name, reqs, prior != nil)
	if candidate == nil {
		installedVersion := ""
		if prior != nil {
			installedVersion = prior.Version
		}
		return classify(name, reqs, len(w.idx.Candidates(name)), installedVersion)
	}

	if err := w.walkDeps(candidate); err != nil {
		return err
	}
	w.status[name] = stateDone
	w.outcome[name] = candidate

	if prior != nil {
		w.emit(Action{
			Op:     OpUpgrade,
			Record: candidate,
			Prior:  prior,
			Auto:   reqm.By != "",
			Reason: upgradeReason(prior, reqs),
		})
	} else {
		w.emit(Action{Op: OpInstall, Record: candidate, Auto: reqm.By != "", Reason: installReason(reqm)})
	}
	return nil
}

func (w *walker) walkDeps(rec *control.Record) error {
	for _, dep := range rec.Depends {
		if err := w.visit(Requirement{Dep: dep, By: rec.Name}); err != nil {
			return err
		}
	}
	return nil
}

// pickCandidate filters the candidate list down to versions satisfying every
// accumulated requirement. Installs take the highest; upgrades follow the
// policy.
func (w *walker) pickCandidate(name string, reqs []Requirement, upgrade bool) *control.Record {
	var satisfying []*control.Record
	for _, rec := range w.idx.Candidates(name) {
		if satisfiesAll(rec.Version, reqs) {
			satisfying = append(satisfying, rec)
		}
	}
	if len(satisfying) == 0 {
		return nil
	}
	if upgrade && w.pol.upgrade() == UpgradeLowest {
		return satisfying[len(satisfying)-1]
	}
	return satisfying[0]
}

func (w *walker) require(name string, r Requirement) {
	for _, existing := range w.need[name] {
		if existing == r {
			return
		}
	}
	w.need[name] = append(w.need[name], r)
}

func (w *walker) emit(a Action) {
	w.actions = append(w.actions, a)
}

// validate re-checks every outcome against the full accumulated constraint
// set, catching requirements that arrived after their target was chosen.
func (w *walker) validate() []string {
	var violated []string
	for _, name := range w.order {
		out := w.outcome[name]
		if out == nil {
			continue
		}
		if !satisfiesAll(out.Version, w.need[name]) {
			violated = append(violated, name)
		}
	}
	return violated
}

func satisfiesAll(version string, reqs []Requirement) bool {
	for _, r := range reqs {
		if !r.Dep.Satisfies(version) {
			return false
		}
	}
	return true
}

func installReason(r Requirement) string {
	if r.By == "" {
		return "requested"
	}
	return fmt.Sprintf("required by %s", r.By)
}

func keepReason(r Requirement) string {
	if r.By == "" {
		return "already installed"
	}
	return fmt.Sprintf("installed version satisfies %s", r.Dep)
}

func upgradeReason(prior *control.Record, reqs []Requirement) string {
	for _, r := range reqs {
		if !r.Dep.Satisfies(prior.Version) {
			return fmt.Sprintf("installed %s does not satisfy %s", prior.Version, r)
		}
	}
	return fmt.Sprintf("replacing installed %s", prior.Version)
}
