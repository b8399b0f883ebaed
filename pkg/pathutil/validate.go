// Package pathutil implements wcbt's path-safety rules: normalization,
// traversal checks, safe-join, and safe-relpath. All path manipulation
// inside the engine routes through this package; raw concatenation of user
// paths is forbidden.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/wcbt-project/wcbt/pkg/errclass"
)

// Normalize NFC-normalizes and cleans a path so visually-identical Unicode
// forms can't be used to bypass later traversal or collision checks.
func Normalize(p string) string {
	return filepath.Clean(norm.NFC.String(p))
}

// ToRelSlash converts an OS-native relative path to the forward-slash form
// stored in manifests, plans, and journals.
func ToRelSlash(rel string) string {
	return filepath.ToSlash(rel)
}

// SafeRelPath resolves child against base and returns a forward-slash,
// manifest-safe relative path. It fails with ErrUnsafePath if child is not
// within base after full symlink resolution.
func SafeRelPath(base, child string) (string, error) {
	resolvedRoot, err := resolveRoot(base)
	if err != nil {
		return "", err
	}
	resolvedTarget, err := resolveTarget(child)
	if err != nil {
		return "", err
	}
	if !underRoot(resolvedRoot, resolvedTarget) {
		return "", errclass.ErrUnsafePath.WithMessagef("path escapes root: %s", child)
	}
	rel, err := filepath.Rel(resolvedRoot, resolvedTarget)
	if err != nil {
		return "", errclass.ErrUnsafePath.WithMessagef("cannot compute relative path: %v", err)
	}
	rel = ToRelSlash(rel)
	if rel == "." {
		rel = ""
	}
	if err := checkRelPath(rel); err != nil {
		return "", err
	}
	return rel, nil
}

// SafeJoin joins base with a forward-slash relative path, rejecting any rel
// that is absolute, contains ".." segments, or whose resolved target escapes
// base (including via a symlink pointing outside base).
func SafeJoin(base, rel string) (string, error) {
	if err := checkRelPath(rel); err != nil {
		return "", err
	}
	joined := filepath.Join(base, filepath.FromSlash(rel))

	resolvedRoot, err := resolveRoot(base)
	if err != nil {
		return "", err
	}
	resolvedTarget, err := resolveTarget(joined)
	if err != nil {
		return "", err
	}
	if !underRoot(resolvedRoot, resolvedTarget) {
		return "", errclass.ErrUnsafePath.WithMessagef("path escapes root: %s", rel)
	}
	return joined, nil
}

// checkRelPath enforces the manifest invariant: rel_path is always relative,
// uses forward slashes, contains no ".." segments, and is never absolute.
func checkRelPath(rel string) error {
	if rel == "" {
		return nil
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return errclass.ErrUnsafePath.WithMessagef("rel_path must not be absolute: %s", rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return errclass.ErrUnsafePath.WithMessagef("rel_path must not contain '..': %s", rel)
		}
	}
	return nil
}

func resolveRoot(root string) (string, error) {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", errclass.ErrUnsafePath.WithMessagef("cannot resolve root: %v", err)
	}
	return resolved, nil
}

func resolveTarget(target string) (string, error) {
	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return resolveClosestAncestor(target), nil
		}
		return "", errclass.ErrUnsafePath.WithMessagef("cannot resolve target: %v", err)
	}
	return resolved, nil
}

func underRoot(root, target string) bool {
	return target == root || strings.HasPrefix(target+string(filepath.Separator), root+string(filepath.Separator))
}

// resolveClosestAncestor walks up from path to find the closest existing
// ancestor, resolves it, then appends the remaining components.
func resolveClosestAncestor(path string) string {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if os.IsNotExist(err) {
			resolved = resolveClosestAncestor(dir)
		} else {
			return filepath.Clean(path)
		}
	}
	return filepath.Join(resolved, base)
}
