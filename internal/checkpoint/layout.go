package checkpoint

import (
	"fmt"
	"time"
)

// dirLayout is the checkpoint directory name format from spec.md §6:
// "<config_dir>/YYYYMMDD-HH:MM:SS/...".
const dirLayout = "20060102-15:04:05"

// DirName formats t as a checkpoint directory name.
func DirName(t time.Time) string {
	return t.UTC().Format(dirLayout)
}

// ParseDirName parses a checkpoint directory name back to its timestamp.
func ParseDirName(name string) (time.Time, error) {
	t, err := time.Parse(dirLayout, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("checkpoint: %q is not a checkpoint directory name: %w", name, err)
	}
	return t.UTC(), nil
}
