package files

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/lidarfusion/internal/fsutil"
)

// Groups maps group_name -> {member_name: device_id}, the device grouping
// format from spec.md §6. The group "all" is implicit: it is never stored
// on disk but always resolves to every device ever seen by ReadGroups'
// caller (see AllGroup).
type Groups map[string]map[string]string

const AllGroup = "all"

// ReadGroups parses a group file's JSON map. A missing file is not an
// error: it's treated as an empty group set (only "all" exists).
func ReadGroups(fsys fsutil.FileSystem, path string) (Groups, error) {
	if !fsys.Exists(path) {
		return Groups{}, nil
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("files: read groups %s: %w", path, err)
	}
	var g Groups
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("files: parse groups %s: %w", path, err)
	}
	if g == nil {
		g = Groups{}
	}
	return g, nil
}

// WriteGroups serialises g as indented JSON. The implicit "all" group is
// never written.
func WriteGroups(fsys fsutil.FileSystem, path string, g Groups) error {
	clean := make(Groups, len(g))
	for name, members := range g {
		if name == AllGroup {
			continue
		}
		clean[name] = members
	}
	data, err := json.MarshalIndent(clean, "", "  ")
	if err != nil {
		return fmt.Errorf("files: marshal groups: %w", err)
	}
	if err := fsutil.EnsureDir(fsys, filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("files: write groups %s: %w", path, err)
	}
	if err := fsys.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("files: write groups %s: %w", path, err)
	}
	return nil
}

// Resolve returns the device ids belonging to groupName. "all" returns
// every id in allDevices regardless of what is recorded on disk.
func (g Groups) Resolve(groupName string, allDevices []string) []string {
	if groupName == AllGroup {
		return allDevices
	}
	members, ok := g[groupName]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(members))
	for _, deviceID := range members {
		out = append(out, deviceID)
	}
	return out
}
