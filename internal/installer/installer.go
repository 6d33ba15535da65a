// Package installer applies resolved plans to the install root. Actions run
// strictly in plan order; each one stages its payload completely before the
// database row is written, and a failure stops the remaining actions without
// unwinding anything already committed.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/quantmind-br/ipkg/internal/archive"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/resolver"
	"github.com/quantmind-br/ipkg/internal/transaction"
)

// Locator turns an index record into a local archive path. Records read
// from local archives carry their own path and bypass it.
type Locator interface {
	Locate(ctx context.Context, rec *control.Record) (string, error)
}

// ProgressFunc is notified before each action executes.
type ProgressFunc func(action resolver.Action, current, total int)

// Options configures an Installer.
type Options struct {
	// Root is the install prefix the payloads land under.
	Root string
	// StagingDir receives payloads before they move into the root.
	// Defaults to Root/.stage, which keeps the final move on one
	// filesystem.
	StagingDir string
	// LockPath is the global install lock file.
	LockPath string
	// LockTimeout bounds how long to wait for another install to finish.
	LockTimeout time.Duration
	// StagingTimeout bounds the staging of a single action.
	StagingTimeout time.Duration
	// MinFreeBytes is left unused on the root filesystem by the preflight
	// check.
	MinFreeBytes int64
}

// Installer owns all mutation of the install root and the package database.
type Installer struct {
	root         string
	stagingDir   string
	lockPath     string
	lockTimeout  time.Duration
	stageTimeout time.Duration
	minFree      int64

	db      *db.DB
	locator Locator
	log     *zerolog.Logger

	// OnProgress, when set, observes each action as it starts.
	OnProgress ProgressFunc

	mu sync.Mutex
}

// New builds an Installer over the given database.
func New(opts Options, database *db.DB, locator Locator, log *zerolog.Logger) *Installer {
	stagingDir := opts.StagingDir
	if stagingDir == "" {
		stagingDir = filepath.Join(opts.Root, ".stage")
	}
	lockPath := opts.LockPath
	if lockPath == "" {
		lockPath = filepath.Join(opts.Root, "var/lock/ipkg.lock")
	}
	lockTimeout := opts.LockTimeout
	if lockTimeout == 0 {
		lockTimeout = 10 * time.Second
	}
	stageTimeout := opts.StagingTimeout
	if stageTimeout == 0 {
		stageTimeout = 5 * time.Minute
	}

	return &Installer{
		root:         opts.Root,
		stagingDir:   stagingDir,
		lockPath:     lockPath,
		lockTimeout:  lockTimeout,
		stageTimeout: stageTimeout,
		minFree:      opts.MinFreeBytes,
		db:           database,
		locator:      locator,
		log:          log,
	}
}

// Apply executes the plan. Keep actions commit without touching anything;
// install and upgrade actions stage then commit one at a time. On the first
// failure the remaining actions are skipped and reported, while the
// committed prefix stays exactly as committed. The returned error wraps the
// *StagingError of the failed action.
func (ins *Installer) Apply(ctx context.Context, plan *resolver.Plan) (*CommitReport, error) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	unlock, err := ins.acquireLock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := os.MkdirAll(ins.root, 0755); err != nil {
		return nil, &StagingError{Action: "prepare install root", Err: err}
	}
	// A crash can leave a previous run's staging area behind. Nobody else
	// holds the lock, so it is garbage.
	_ = os.RemoveAll(ins.stagingDir)

	report := &CommitReport{}
	for i, action := range plan.Actions {
		if ins.OnProgress != nil {
			ins.OnProgress(action, i+1, len(plan.Actions))
		}

		if action.Op == resolver.OpKeep {
			ins.log.Debug().Str("package", action.Record.Name).Str("version", action.Record.Version).Msg("Keeping installed version")
			report.Committed = append(report.Committed, action)
			continue
		}

		if err := ins.applyAction(ctx, action); err != nil {
			ins.log.Error().Err(err).Str("action", action.String()).Msg("Action failed, aborting remaining plan")
			report.Failed = &FailedAction{Action: action, Err: err}
			report.Skipped = append(report.Skipped, plan.Actions[i+1:]...)
			return report, fmt.Errorf("apply plan: %w", err)
		}

		ins.log.Info().Str("action", action.String()).Msg("Committed")
		report.Committed = append(report.Committed, action)
	}
	return report, nil
}

func (ins *Installer) applyAction(ctx context.Context, action resolver.Action) error {
	actx := ctx
	if ins.stageTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, ins.stageTimeout)
		defer cancel()
	}

	journal := transaction.NewJournal(ins.log)
	if err := ins.stageAndCommit(actx, action, journal); err != nil {
		if revertErr := journal.Revert(); revertErr != nil {
			ins.log.Error().Err(revertErr).Str("action", action.String()).Msg("Revert after failed action left residue")
		}
		if stagingErr := (*StagingError)(nil); errors.As(err, &stagingErr) {
			return err
		}
		return &StagingError{Action: action.String(), Err: err}
	}
	return nil
}

// stageAndCommit does the whole of one install or upgrade: preflight,
// write-ahead extraction into the staging area, journaled placement into the
// root, then the database row as the commit point.
func (ins *Installer) stageAndCommit(ctx context.Context, action resolver.Action, journal *transaction.Journal) error {
	rec := action.Record

	if err := ins.preflight(rec); err != nil {
		return err
	}

	path := rec.LocalPath
	if path == "" {
		located, err := ins.locator.Locate(ctx, rec)
		if err != nil {
			return fmt.Errorf("locate archive: %w", err)
		}
		path = located
	}

	var priorFiles []string
	if action.Op == resolver.OpUpgrade {
		pf, err := ins.db.Files(ctx, rec.Name)
		if err != nil && !errors.Is(err, db.ErrNotInstalled) {
			return fmt.Errorf("read prior file list: %w", err)
		}
		priorFiles = pf
	}

	stageDir := filepath.Join(ins.stagingDir, rec.ID())
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	ins.log.Debug().Str("archive", path).Str("stage", stageDir).Msg("Staging payload")
	files, err := archive.ExtractData(ctx, path, stageDir)
	if err != nil {
		return err
	}

	// The root is only touched from here on, and every touch is journaled.
	var backups []string
	for _, file := range files {
		staged := filepath.Join(stageDir, file)
		target := filepath.Join(ins.root, file)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
		}

		if _, err := os.Lstat(target); err == nil {
			backup := target + ".ipkg-old"
			if err := os.Rename(target, backup); err != nil {
				return fmt.Errorf("back up %s: %w", target, err)
			}
			backups = append(backups, backup)
			journal.Record("restore "+target, func() error {
				return os.Rename(backup, target)
			})
		}

		if err := os.Rename(staged, target); err != nil {
			return fmt.Errorf("place %s: %w", file, err)
		}
		journal.Record("remove "+target, func() error {
			return os.Remove(target)
		})
	}

	// Commit point. After this the action is done and is never unwound.
	if err := ins.db.Put(ctx, rec, files, action.Auto); err != nil {
		return fmt.Errorf("record install: %w", err)
	}
	journal.Commit()

	for _, backup := range backups {
		if err := os.Remove(backup); err != nil {
			ins.log.Warn().Err(err).Str("file", backup).Msg("Failed to drop replaced file")
		}
	}
	if action.Op == resolver.OpUpgrade {
		ins.removeObsolete(priorFiles, files)
	}
	return nil
}

// removeObsolete deletes files the previous version shipped and the new one
// does not. Failures are logged, not fatal: the action has already
// committed.
func (ins *Installer) removeObsolete(priorFiles, newFiles []string) {
	current := make(map[string]struct{}, len(newFiles))
	for _, f := range newFiles {
		current[f] = struct{}{}
	}
	for _, f := range priorFiles {
		if _, ok := current[f]; ok {
			continue
		}
		target := filepath.Join(ins.root, f)
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			ins.log.Warn().Err(err).Str("file", target).Msg("Failed to remove obsolete file")
			continue
		}
		ins.pruneEmptyParents(f)
	}
}

// pruneEmptyParents removes directories left empty above a deleted file,
// stopping at the install root or the first non-empty directory.
func (ins *Installer) pruneEmptyParents(file string) {
	for dir := filepath.Dir(file); dir != "/" && dir != "."; dir = filepath.Dir(dir) {
		if err := os.Remove(filepath.Join(ins.root, dir)); err != nil {
			return
		}
	}
}

// preflight verifies the root filesystem has room for the payload plus the
// configured reserve.
func (ins *Installer) preflight(rec *control.Record) error {
	var st unix.Statfs_t
	if err := unix.Statfs(ins.root, &st); err != nil {
		return fmt.Errorf("statfs %s: %w", ins.root, err)
	}
	free := int64(st.Bavail) * int64(st.Bsize)

	// Installed-Size is in KiB when feeds carry it; fall back to the
	// archive size.
	need := rec.InstalledSize * 1024
	if need < rec.Size {
		need = rec.Size
	}
	if free < need+ins.minFree {
		return fmt.Errorf("not enough space on %s: %d bytes free, need %d", ins.root, free, need+ins.minFree)
	}
	return nil
}
