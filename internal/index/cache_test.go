package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/ipkg/internal/control"
)

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(t.TempDir() + "/lists.db")
	require.NoError(t, err)
	defer cache.Close()

	last, err := cache.LastRefresh()
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	feeds := map[string][]*control.Record{
		"main":   {rec("a", "1.0"), rec("b", "1.0")},
		"extras": {rec("z", "0.1")},
	}
	require.NoError(t, cache.ReplaceAll(feeds))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Len(t, loaded["main"], 2)
	assert.Len(t, loaded["extras"], 1)
	assert.Equal(t, "z", loaded["extras"][0].Name)

	last, err = cache.LastRefresh()
	require.NoError(t, err)
	assert.False(t, last.IsZero())
}

func TestCacheReplaceDropsStaleFeeds(t *testing.T) {
	cache, err := OpenCache(t.TempDir() + "/lists.db")
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.ReplaceAll(map[string][]*control.Record{
		"main": {rec("a", "1.0")},
		"old":  {rec("gone", "1.0")},
	}))
	require.NoError(t, cache.ReplaceAll(map[string][]*control.Record{
		"main": {rec("a", "2.0")},
	}))

	loaded, err := cache.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Len(t, loaded["main"], 1)
	assert.Equal(t, "2.0", loaded["main"][0].Version)
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/lists.db"

	cache, err := OpenCache(path)
	require.NoError(t, err)
	require.NoError(t, cache.ReplaceAll(map[string][]*control.Record{"main": {rec("a", "1.0")}}))
	require.NoError(t, cache.Close())

	reopened, err := OpenCache(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load()
	require.NoError(t, err)
	require.Len(t, loaded["main"], 1)
	assert.Equal(t, "a", loaded["main"][0].Name)
}
