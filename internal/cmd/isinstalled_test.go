package cmd

import (
	"bytes"
	"io"
	"testing"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsInstalledCmd(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	log := zerolog.New(io.Discard)

	cmd := NewIsInstalledCmd(cfg, &log)

	assert.NotNil(t, cmd)
	assert.Equal(t, "is-installed [package] [version]", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("quiet"))
}

func TestIsInstalledCmd_Installed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	seedInstalled(t, cfg, &control.Record{Name: "hello", Version: "1.0"}, nil)

	out, err := runCmd(t, NewIsInstalledCmd(cfg, &log), "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello 1.0")
}

func TestIsInstalledCmd_MatchingVersion(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	seedInstalled(t, cfg, &control.Record{Name: "hello", Version: "1.0"}, nil)

	_, err := runCmd(t, NewIsInstalledCmd(cfg, &log), "hello", "1.0")
	require.NoError(t, err)
}

func TestIsInstalledCmd_VersionMismatch(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	seedInstalled(t, cfg, &control.Record{Name: "hello", Version: "1.0"}, nil)

	out, err := runCmd(t, NewIsInstalledCmd(cfg, &log), "hello", "2.0")
	require.Error(t, err)
	assert.Contains(t, out, "installed: 1.0")
}

func TestIsInstalledCmd_NotInstalled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	out, err := runCmd(t, NewIsInstalledCmd(cfg, &log), "ghost")
	require.Error(t, err)
	assert.Contains(t, out, "ghost is not installed")
}

func TestIsInstalledCmd_Quiet(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)

	cmd := NewIsInstalledCmd(cfg, &log)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"ghost", "-q"})

	err := cmd.Execute()
	require.Error(t, err)
	// The exit code is the whole answer in quiet mode.
	assert.Empty(t, stdout.String())
}
