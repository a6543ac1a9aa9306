package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCatalogRecordAndLatest(t *testing.T) {
	c := openTestCatalog(t)

	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "20260101-00:00:00", TakenUnixMs: 1000, DeviceCount: 2}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "20260102-00:00:00", TakenUnixMs: 2000, DeviceCount: 3}))

	latest, ok, err := c.Latest("/cfg")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "20260102-00:00:00", latest.Name)
	require.Equal(t, 3, latest.DeviceCount)
}

func TestCatalogLatestEmptyReturnsFalse(t *testing.T) {
	c := openTestCatalog(t)
	_, ok, err := c.Latest("/missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCatalogNearestPicksNewestNotAfterQuery(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "a", TakenUnixMs: 1000}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "b", TakenUnixMs: 2000}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "c", TakenUnixMs: 3000}))

	e, ok, err := c.Nearest("/cfg", 2500)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", e.Name)
}

func TestCatalogNearestBeforeEarliestReturnsFalse(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "a", TakenUnixMs: 1000}))

	_, ok, err := c.Nearest("/cfg", 500)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCatalogRecordUpsertsOnConflict(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "a", TakenUnixMs: 1000, DeviceCount: 1}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "a", TakenUnixMs: 1500, DeviceCount: 5}))

	list, err := c.List("/cfg")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(1500), list[0].TakenUnixMs)
	require.Equal(t, 5, list[0].DeviceCount)
}

func TestCatalogListReturnsOldestFirst(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "b", TakenUnixMs: 2000}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/cfg", Name: "a", TakenUnixMs: 1000}))

	list, err := c.List("/cfg")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "a", list[0].Name)
	require.Equal(t, "b", list[1].Name)
}

func TestCatalogScopesEntriesByConfigDir(t *testing.T) {
	c := openTestCatalog(t)
	require.NoError(t, c.Record(Entry{ConfigDir: "/one", Name: "a", TakenUnixMs: 1000}))
	require.NoError(t, c.Record(Entry{ConfigDir: "/two", Name: "a", TakenUnixMs: 1000}))

	list, err := c.List("/one")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
