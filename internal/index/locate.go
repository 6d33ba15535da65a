package index

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/security"
)

// Locate resolves the on-disk archive path for a record. Records parsed out
// of a local archive carry their own path. Feed records resolve relative to
// their feed's directory, using the stanza's Filename field when present and
// the conventional name_version_arch.ipk otherwise.
func (m *Manager) Locate(_ context.Context, rec *control.Record) (string, error) {
	if rec.LocalPath != "" {
		return rec.LocalPath, nil
	}

	feeds, err := LoadFeeds(m.fs, m.feedsPath)
	if err != nil {
		return "", err
	}
	for _, feed := range feeds {
		if feed.Name != rec.Source {
			continue
		}
		name := rec.Filename
		if name == "" {
			name = defaultArchiveName(rec)
		}
		feedDir := filepath.Dir(feed.Path)
		if err := security.ValidateExtractPath(feedDir, name); err != nil {
			return "", fmt.Errorf("feed %q names archive outside its directory: %w", feed.Name, err)
		}
		return filepath.Join(feedDir, name), nil
	}
	return "", fmt.Errorf("record %s came from feed %q, which is not configured", rec.ID(), rec.Source)
}

func defaultArchiveName(rec *control.Record) string {
	arch := rec.Architecture
	if arch == "" {
		arch = "all"
	}
	return fmt.Sprintf("%s_%s_%s.ipk", rec.Name, rec.Version, arch)
}
