package files

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidarfusion/internal/fsutil"
)

func TestReadGroupsMissingFileIsEmptyNotError(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	g, err := ReadGroups(fsys, "groups.json")
	require.NoError(t, err)
	require.Empty(t, g)
}

func TestWriteGroupsThenReadGroupsRoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	g := Groups{
		"lobby": {"front": "dev-1", "back": "dev-2"},
	}
	require.NoError(t, WriteGroups(fsys, "groups.json", g))

	got, err := ReadGroups(fsys, "groups.json")
	require.NoError(t, err)
	require.Equal(t, g, got)
}

func TestWriteGroupsNeverPersistsImplicitAllGroup(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	g := Groups{
		AllGroup: {"x": "dev-1"},
		"lobby":  {"front": "dev-1"},
	}
	require.NoError(t, WriteGroups(fsys, "groups.json", g))

	got, err := ReadGroups(fsys, "groups.json")
	require.NoError(t, err)
	_, hasAll := got[AllGroup]
	require.False(t, hasAll)
	require.Contains(t, got, "lobby")
}

func TestGroupsResolveAllReturnsEveryDeviceRegardlessOfDisk(t *testing.T) {
	g := Groups{"lobby": {"front": "dev-1"}}
	all := g.Resolve(AllGroup, []string{"dev-1", "dev-2", "dev-3"})
	require.Equal(t, []string{"dev-1", "dev-2", "dev-3"}, all)
}

func TestGroupsResolveNamedGroupReturnsMembers(t *testing.T) {
	g := Groups{"lobby": {"front": "dev-1", "back": "dev-2"}}
	members := g.Resolve("lobby", []string{"dev-1", "dev-2", "dev-3"})
	require.ElementsMatch(t, []string{"dev-1", "dev-2"}, members)
}

func TestGroupsResolveUnknownGroupReturnsNil(t *testing.T) {
	g := Groups{}
	require.Nil(t, g.Resolve("nope", []string{"dev-1"}))
}
