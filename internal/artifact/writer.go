// Package artifact implements wcbt's ArtifactWriter: every JSON document
// the engine produces (manifest, plan, verify report) is written through
// here so the on-disk contract — canonical form, write-to-temp-then-rename,
// trailing newline — is enforced in exactly one place.
package artifact

import (
	"fmt"
	"os"

	"github.com/wcbt-project/wcbt/pkg/fsutil"
	"github.com/wcbt-project/wcbt/pkg/jsonutil"
)

// WriteJSON canonically marshals v and writes it atomically to path with a
// trailing newline. LF-terminated, UTF-8, keys sorted — matching every
// other artifact the engine produces so byte-for-byte comparisons across
// runs are meaningful.
func WriteJSON(path string, v any) error {
	data, err := jsonutil.CanonicalMarshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	data = append(data, '\n')
	return fsutil.AtomicWrite(path, data, 0644)
}

// AppendJSONLine appends one canonical-JSON line (no atomic rename — journal
// writers need durable append semantics, not whole-file replacement) to the
// file at path, creating it if necessary.
func AppendJSONLine(path string, v any) error {
	data, err := jsonutil.CanonicalMarshal(v)
	if err != nil {
		return fmt.Errorf("marshal artifact line: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append journal line: %w", err)
	}
	return f.Sync()
}
