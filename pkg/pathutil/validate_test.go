package pathutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/pathutil"
)

func TestSafeRelPath_UnderRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "sub", "a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

	rel, err := pathutil.SafeRelPath(root, target)
	require.NoError(t, err)
	assert.Equal(t, "sub/a.txt", rel)
}

func TestSafeRelPath_RootItself(t *testing.T) {
	root := t.TempDir()
	rel, err := pathutil.SafeRelPath(root, root)
	require.NoError(t, err)
	assert.Equal(t, "", rel)
}

func TestSafeRelPath_Escape(t *testing.T) {
	root := t.TempDir()
	_, err := pathutil.SafeRelPath(root, "/tmp")
	require.ErrorIs(t, err, errclass.ErrUnsafePath)
}

func TestSafeRelPath_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink("/tmp", link))

	_, err := pathutil.SafeRelPath(root, link)
	require.ErrorIs(t, err, errclass.ErrUnsafePath)
}

func TestSafeRelPath_NonExistentTarget(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	target := filepath.Join(root, "sub", "new.txt")

	rel, err := pathutil.SafeRelPath(root, target)
	require.NoError(t, err)
	assert.Equal(t, "sub/new.txt", rel)
}

func TestSafeJoin_Valid(t *testing.T) {
	root := t.TempDir()
	abs, err := pathutil.SafeJoin(root, "sub/a.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sub", "a.txt"), abs)
}

func TestSafeJoin_RejectsAbsolute(t *testing.T) {
	root := t.TempDir()
	_, err := pathutil.SafeJoin(root, "/etc/passwd")
	require.ErrorIs(t, err, errclass.ErrUnsafePath)
}

func TestSafeJoin_RejectsDotDot(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{"..", "../escape", "sub/../../escape"} {
		_, err := pathutil.SafeJoin(root, rel)
		require.ErrorIs(t, err, errclass.ErrUnsafePath, "rel=%s", rel)
	}
}

func TestSafeJoin_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink("/tmp", link))

	_, err := pathutil.SafeJoin(root, "escape/x")
	require.ErrorIs(t, err, errclass.ErrUnsafePath)
}

func TestSafeJoin_EmptyRel(t *testing.T) {
	root := t.TempDir()
	abs, err := pathutil.SafeJoin(root, "")
	require.NoError(t, err)
	assert.Equal(t, root, abs)
}

func TestNormalize_CleansPath(t *testing.T) {
	assert.Equal(t, filepath.Clean("a/b/../c"), pathutil.Normalize("a/b/../c"))
}

func TestToRelSlash_ConvertsSeparators(t *testing.T) {
	assert.Equal(t, "a/b/c", pathutil.ToRelSlash(filepath.Join("a", "b", "c")))
}
