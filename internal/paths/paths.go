// Package paths centralizes the filesystem layout of an install root. All
// state lives under the root, so offline roots stay self-contained. Explicit
// configuration overrides win over the derived defaults.
package paths

import (
	"path/filepath"

	"github.com/quantmind-br/ipkg/internal/config"
)

// Resolver derives every ipkg path from the configured install root.
type Resolver struct {
	root string
	cfg  *config.Config
}

// NewResolver creates a Resolver from the configured install root.
func NewResolver(cfg *config.Config) *Resolver {
	root := "/"
	if cfg != nil && cfg.Paths.Root != "" {
		root = cfg.Paths.Root
	}
	return &Resolver{root: root, cfg: cfg}
}

// NewResolverWithRoot creates a Resolver with an explicit root (useful for
// tests).
func NewResolverWithRoot(cfg *config.Config, root string) *Resolver {
	return &Resolver{root: root, cfg: cfg}
}

// Root returns the install root.
func (r *Resolver) Root() string {
	return r.root
}

// DBFile returns the installed-package database path.
func (r *Resolver) DBFile() string {
	if r.cfg != nil && r.cfg.Paths.DBFile != "" {
		return r.cfg.Paths.DBFile
	}
	return filepath.Join(r.root, "var", "lib", "ipkg", "installed.db")
}

// CacheFile returns the feed index cache path.
func (r *Resolver) CacheFile() string {
	if r.cfg != nil && r.cfg.Paths.CacheFile != "" {
		return r.cfg.Paths.CacheFile
	}
	return filepath.Join(r.root, "var", "cache", "ipkg", "index.cache")
}

// FeedsFile returns the feed configuration path.
func (r *Resolver) FeedsFile() string {
	if r.cfg != nil && r.cfg.Paths.FeedsFile != "" {
		return r.cfg.Paths.FeedsFile
	}
	return filepath.Join(r.root, "etc", "ipkg", "feeds.yaml")
}

// LockFile returns the global install lock path.
func (r *Resolver) LockFile() string {
	if r.cfg != nil && r.cfg.Paths.LockFile != "" {
		return r.cfg.Paths.LockFile
	}
	return filepath.Join(r.root, "var", "lock", "ipkg.lock")
}

// StagingDir returns the directory payloads are staged in before commit.
func (r *Resolver) StagingDir() string {
	if r.cfg != nil && r.cfg.Paths.StagingDir != "" {
		return r.cfg.Paths.StagingDir
	}
	return filepath.Join(r.root, "var", "cache", "ipkg", "staging")
}

// LogFile returns the log file path.
func (r *Resolver) LogFile() string {
	if r.cfg != nil && r.cfg.Paths.LogFile != "" {
		return r.cfg.Paths.LogFile
	}
	return filepath.Join(r.root, "var", "log", "ipkg", "ipkg.log")
}
