// Package manifeststore implements wcbt's ManifestStore: reading and
// writing run manifests in their canonical on-disk form, and enumerating
// the runs under a destination root.
package manifeststore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wcbt-project/wcbt/internal/artifact"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
)

const manifestFileName = "manifest.json"

// Write persists a manifest at <destinationRoot>/<run_id>/manifest.json in
// canonical form.
func Write(destinationRoot string, m *model.Manifest) error {
	runDir := filepath.Join(destinationRoot, m.RunID.String())
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return errclass.ErrIOError.WithMessagef("create run directory: %v", err)
	}
	return artifact.WriteJSON(filepath.Join(runDir, manifestFileName), m)
}

// Read loads and validates the manifest for runID under destinationRoot.
// A missing manifest is reported as errclass.ErrIncompleteRun, since a run
// directory with no manifest is either mid-write or crashed.
func Read(destinationRoot string, runID model.RunID) (*model.Manifest, error) {
	return ReadPath(filepath.Join(destinationRoot, runID.String(), manifestFileName))
}

// ReadPath loads and validates a manifest file at an explicit path.
func ReadPath(path string) (*model.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrIncompleteRun.WithMessagef("manifest not found: %s", path)
		}
		return nil, errclass.ErrIOError.WithMessagef("read manifest: %v", err)
	}

	var m model.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("parse manifest: %v", err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate enforces the manifest's structural invariants: recognized
// schema tag, forward-slash rel paths with no traversal segments, and
// entries in strictly ascending rel_path order.
func Validate(m *model.Manifest) error {
	if m.Schema != model.SchemaRunManifestV1 {
		return errclass.ErrSchemaUnsupported.WithMessagef("unsupported manifest schema: %q", m.Schema)
	}

	prev := ""
	for i, f := range m.Files {
		if strings.Contains(f.RelPath, "\\") {
			return errclass.ErrManifestInvalid.WithMessagef("rel_path must use forward slashes: %q", f.RelPath)
		}
		if f.RelPath == "" || strings.HasPrefix(f.RelPath, "/") {
			return errclass.ErrManifestInvalid.WithMessagef("rel_path must be a non-empty relative path: %q", f.RelPath)
		}
		for _, seg := range strings.Split(f.RelPath, "/") {
			if seg == ".." || seg == "." {
				return errclass.ErrManifestInvalid.WithMessagef("rel_path must not contain traversal segments: %q", f.RelPath)
			}
		}
		if i > 0 && f.RelPath <= prev {
			return errclass.ErrManifestInvalid.WithMessagef("files must be in strictly ascending rel_path order: %q after %q", f.RelPath, prev)
		}
		prev = f.RelPath
	}
	return nil
}

// ListRuns returns the run ids present under destinationRoot, sorted
// ascending. A destination that does not exist yet returns an empty slice,
// not an error.
func ListRuns(destinationRoot string) ([]model.RunID, error) {
	entries, err := os.ReadDir(destinationRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errclass.ErrIOError.WithMessagef("list runs: %v", err)
	}

	var runs []model.RunID
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		runs = append(runs, model.RunID(e.Name()))
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i] < runs[j] })
	return runs, nil
}
