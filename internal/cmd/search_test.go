package cmd

import (
	"io"
	"testing"

	"github.com/quantmind-br/ipkg/internal/config"
	"github.com/quantmind-br/ipkg/internal/control"
	"github.com/quantmind-br/ipkg/internal/index"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchFixture() *index.Index {
	return index.New([]*control.Record{
		{Name: "hello", Version: "1.0", Description: "Friendly greeter"},
		{Name: "helloworld", Version: "2.0", Description: "Bigger greeter"},
		{Name: "libmath", Version: "3.1", Description: "Arithmetic helpers"},
		{Name: "editor", Version: "0.4", Description: "Text editing with greeting support"},
	})
}

func TestNewSearchCmd(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	log := zerolog.New(io.Discard)

	cmd := NewSearchCmd(cfg, &log)

	assert.NotNil(t, cmd)
	assert.Contains(t, cmd.Use, "search")
	assert.NotNil(t, cmd.Flags().Lookup("descriptions"))
}

func TestSearchIndex(t *testing.T) {
	t.Parallel()

	idx := searchFixture()

	t.Run("matches by name", func(t *testing.T) {
		t.Parallel()
		matches := searchIndex(idx, "hello", false)
		assert.Contains(t, matches, "hello")
		assert.Contains(t, matches, "helloworld")
		assert.NotContains(t, matches, "libmath")
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, searchIndex(idx, "zzzzzz", false))
	})

	t.Run("description match needs the flag", func(t *testing.T) {
		t.Parallel()
		assert.NotContains(t, searchIndex(idx, "greeting", false), "editor")
		assert.Contains(t, searchIndex(idx, "greeting", true), "editor")
	})

	t.Run("name matches rank ahead of description matches", func(t *testing.T) {
		t.Parallel()
		matches := searchIndex(idx, "hello", true)
		require.NotEmpty(t, matches)
		assert.Equal(t, "hello", matches[0])
	})
}

func TestSearchCmd_FindsPackages(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)
	writeFeed(t, cfg, "main", testFeedDoc)

	_, err := runCmd(t, NewUpdateCmd(cfg, &log))
	require.NoError(t, err)

	out, err := runCmd(t, NewSearchCmd(cfg, &log), "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "1.0")
}

func TestSearchCmd_NoMatches(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	log := zerolog.New(io.Discard)
	writeFeed(t, cfg, "main", testFeedDoc)

	_, err := runCmd(t, NewUpdateCmd(cfg, &log))
	require.NoError(t, err)

	_, err = runCmd(t, NewSearchCmd(cfg, &log), "zzzzzz")
	assert.NoError(t, err)
}
