// Package backupscan implements wcbt's BackupScan: a depth-first walk of
// the source tree emitting (abs, rel) pairs for regular files only.
package backupscan

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/pathutil"
)

// Entry is one regular file found under the source root.
type Entry struct {
	AbsPath string
	RelPath string
}

// Scan walks sourceRoot depth-first with directory entries sorted at each
// level, so the returned order is deterministic across platforms. Symlinks
// are rejected with errclass.ErrUnsafePath — a future policy hook may allow
// recording them, but the core engine never follows or silently skips one.
// Hidden files are included.
func Scan(sourceRoot string) ([]Entry, error) {
	root, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, errclass.ErrIOError.WithMessagef("resolve source root: %v", err)
	}

	var entries []Entry
	if err := walk(root, root, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func walk(root, dir string, entries *[]Entry) error {
	children, err := os.ReadDir(dir)
	if err != nil {
		return errclass.ErrUnreadable.WithMessagef("read dir %s: %v", dir, err)
	}

	sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })

	for _, child := range children {
		abs := filepath.Join(dir, child.Name())

		info, err := os.Lstat(abs)
		if err != nil {
			return errclass.ErrUnreadable.WithMessagef("stat %s: %v", abs, err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return errclass.ErrUnsafePath.WithMessagef("symlinks are not supported: %s", abs)
		}

		if info.IsDir() {
			if err := walk(root, abs, entries); err != nil {
				return err
			}
			continue
		}

		if !info.Mode().IsRegular() {
			continue
		}

		rel, err := pathutil.SafeRelPath(root, abs)
		if err != nil {
			return err
		}
		*entries = append(*entries, Entry{AbsPath: abs, RelPath: pathutil.ToRelSlash(rel)})
	}
	return nil
}
