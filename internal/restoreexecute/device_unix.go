//go:build !windows

package restoreexecute

import (
	"os"
	"path/filepath"
	"syscall"
)

// crossDevice reports whether a and b live on different filesystems, by
// comparing the device number each path's closest existing ancestor
// resolves to. A path that does not yet exist (the destination, on a
// first-time restore) is resolved via its parent directory instead.
func crossDevice(a, b string) bool {
	devA, okA := deviceOf(a)
	devB, okB := deviceOf(b)
	if !okA || !okB {
		return false
	}
	return devA != devB
}

func deviceOf(path string) (uint64, bool) {
	info, err := os.Stat(path)
	if err != nil {
		parent := filepath.Dir(path)
		if parent == path {
			return 0, false
		}
		return deviceOf(parent)
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(stat.Dev), true
}
