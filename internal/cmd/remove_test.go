package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/db"
	"github.com/quantmind-br/ipkg/internal/paths"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedInstalled records a package in the database and materializes its files
// under the install root.
func seedInstalled(t *testing.T, cfg *config.Config, rec *control.Record, files []string) {
	t.Helper()
	layout := paths.NewResolver(cfg)

	for _, file := range files {
		target := filepath.Join(layout.Root(), file)
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
		require.NoError(t, os.WriteFile(target, []byte("content"), 0644))
	}

	database, err := db.New(context.Background(), layout.DBFile())
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.Put(context.Background(), rec, files, false))
}

func TestNewRemoveCmd(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	log := zerolog.New(io.Discard)

	cmd := NewRemoveCmd(cfg, &log)

	assert.NotNil(t, cmd)
	assert.Equal(t, "remove [package]", cmd.Use)
	assert.Contains(t, cmd.Aliases, "uninstall")
}

func TestRemoveCmd_Flags(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	log := zerolog.New(io.Discard)
	cmd := NewRemoveCmd(cfg, &log)

	assert.NotNil(t, cmd.Flags().Lookup("force"))
	assert.NotNil(t, cmd.Flags().Lookup("yes"))
}

func TestRemoveCmd_NotInstalled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	_, err := runCmd(t, NewRemoveCmd(cfg, &log), "ghost", "-y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package not installed")
}

func TestRemoveCmd_RemovesFilesAndRow(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	seedInstalled(t, cfg, &control.Record{Name: "hello", Version: "1.0"}, []string{"usr/bin/hello"})

	_, err := runCmd(t, NewRemoveCmd(cfg, &log), "hello", "-y")
	require.NoError(t, err)

	layout := paths.NewResolver(cfg)
	assert.NoFileExists(t, filepath.Join(layout.Root(), "usr", "bin", "hello"))

	database, err := db.New(context.Background(), layout.DBFile())
	require.NoError(t, err)
	defer database.Close()
	_, err = database.Get(context.Background(), "hello")
	assert.ErrorIs(t, err, db.ErrNotInstalled)
}

func TestRemoveCmd_RefusesWithDependents(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	deps, err := control.ParseDepends("libgreet")
	require.NoError(t, err)

	seedInstalled(t, cfg, &control.Record{Name: "libgreet", Version: "2.1"}, []string{"usr/lib/libgreet.so"})
	seedInstalled(t, cfg, &control.Record{Name: "app", Version: "1.0", Depends: deps}, []string{"usr/bin/app"})

	_, err = runCmd(t, NewRemoveCmd(cfg, &log), "libgreet", "-y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still required by")

	// The package stays installed and on disk.
	layout := paths.NewResolver(cfg)
	assert.FileExists(t, filepath.Join(layout.Root(), "usr", "lib", "libgreet.so"))
}

func TestRemoveCmd_ForceOverridesDependents(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	deps, err := control.ParseDepends("libgreet")
	require.NoError(t, err)

	seedInstalled(t, cfg, &control.Record{Name: "libgreet", Version: "2.1"}, []string{"usr/lib/libgreet.so"})
	seedInstalled(t, cfg, &control.Record{Name: "app", Version: "1.0", Depends: deps}, []string{"usr/bin/app"})

	_, err = runCmd(t, NewRemoveCmd(cfg, &log), "libgreet", "-y", "-f")
	require.NoError(t, err)

	layout := paths.NewResolver(cfg)
	assert.NoFileExists(t, filepath.Join(layout.Root(), "usr", "lib", "libgreet.so"))
}
