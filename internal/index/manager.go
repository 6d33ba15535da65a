package index

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/security"
)

// Feed is one configured package source: a name and the path of its
// Packages document. Plain and gzip-compressed documents are both accepted.
type Feed struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type feedsFile struct {
	Feeds []Feed `yaml:"feeds"`
}

// LoadFeeds reads the feeds configuration file.
func LoadFeeds(fs afero.Fs, path string) ([]Feed, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var parsed feedsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(parsed.Feeds))
	for _, feed := range parsed.Feeds {
		if feed.Name == "" || feed.Path == "" {
			return nil, fmt.Errorf("feeds file %s: every feed needs a name and a path", path)
		}
		if err := security.ValidateFeedName(feed.Name); err != nil {
			return nil, fmt.Errorf("feeds file %s: %w", path, err)
		}
		if _, ok := seen[feed.Name]; ok {
			return nil, fmt.Errorf("feeds file %s: duplicate feed %q", path, feed.Name)
		}
		seen[feed.Name] = struct{}{}
	}
	return parsed.Feeds, nil
}

// Opener opens one feed document for reading. The default implementation
// reads from the filesystem; fetching over other transports is the caller's
// concern and plugs in here.
type Opener interface {
	Open(ctx context.Context, feed Feed) (io.ReadCloser, error)
}

// FileOpener reads feed documents from an afero filesystem.
type FileOpener struct {
	Fs afero.Fs
}

func (o FileOpener) Open(_ context.Context, feed Feed) (io.ReadCloser, error) {
	return o.Fs.Open(feed.Path)
}

// Manager owns the live index snapshot. Refresh builds a complete new
// snapshot and swaps it in atomically; readers holding the previous snapshot
// keep a consistent view for as long as they need it.
type Manager struct {
	fs        afero.Fs
	feedsPath string
	opener    Opener
	cache     *Cache
	log       *zerolog.Logger

	current atomic.Pointer[Index]
}

// NewManager opens the feed cache and returns a manager serving an empty
// snapshot. Call Load to serve cached feeds, Refresh to parse them anew.
func NewManager(fs afero.Fs, feedsPath, cachePath string, log *zerolog.Logger) (*Manager, error) {
	cache, err := OpenCache(cachePath)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		fs:        fs,
		feedsPath: feedsPath,
		opener:    FileOpener{Fs: fs},
		cache:     cache,
		log:       log,
	}
	m.current.Store(New(nil))
	return m, nil
}

// Close releases the feed cache.
func (m *Manager) Close() error {
	return m.cache.Close()
}

// Snapshot returns the current index. Never nil; before any Load or Refresh
// it is empty.
func (m *Manager) Snapshot() *Index {
	return m.current.Load()
}

// LastRefresh reports when the cache was last rewritten by a refresh.
func (m *Manager) LastRefresh() (time.Time, error) {
	return m.cache.LastRefresh()
}

// Load serves the last refreshed feeds from the cache. A missing or empty
// cache yields an empty snapshot, not an error.
func (m *Manager) Load(ctx context.Context) error {
	feeds, err := m.cache.Load()
	if err != nil {
		return fmt.Errorf("load feed cache: %w", err)
	}

	idx := New(flatten(feeds))
	m.current.Store(idx)
	m.log.Debug().Int("packages", idx.Len()).Int("feeds", len(feeds)).Msg("Index loaded from cache")
	return nil
}

// Refresh parses every configured feed and swaps in the combined snapshot.
// Any unreadable or malformed feed fails the whole refresh and leaves the
// previous snapshot and cache untouched. Malformed documents surface as a
// *MalformedError.
func (m *Manager) Refresh(ctx context.Context) error {
	feeds, err := LoadFeeds(m.fs, m.feedsPath)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	parsed := make(map[string][]*control.Record, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, feed := range feeds {
		g.Go(func() error {
			records, err := m.readFeed(ctx, feed)
			if err != nil {
				return err
			}
			mu.Lock()
			parsed[feed.Name] = records
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.log.Warn().Err(err).Msg("Index refresh failed, keeping previous snapshot")
		return err
	}

	idx := New(flatten(parsed))
	if err := m.cache.ReplaceAll(parsed); err != nil {
		return fmt.Errorf("persist feed cache: %w", err)
	}
	m.current.Store(idx)

	m.log.Info().Int("packages", idx.Len()).Int("feeds", len(feeds)).Msg("Index refreshed")
	return nil
}

func (m *Manager) readFeed(ctx context.Context, feed Feed) ([]*control.Record, error) {
	f, err := m.opener.Open(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("open feed %q: %w", feed.Name, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(feed.Path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, &MalformedError{Feed: feed.Name, Err: err}
		}
		defer gz.Close()
		reader = gz
	}

	records, err := control.ParseIndex(reader, feed.Name)
	if err != nil {
		return nil, &MalformedError{Feed: feed.Name, Err: err}
	}
	return records, nil
}

// flatten merges per-feed record lists in deterministic feed order.
func flatten(feeds map[string][]*control.Record) []*control.Record {
	names := make([]string, 0, len(feeds))
	for name := range feeds {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []*control.Record
	for _, name := range names {
		records = append(records, feeds[name]...)
	}
	return records
}
