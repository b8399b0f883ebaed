// Package restoreplan implements wcbt's RestorePlan: turning a run manifest
// into an ordered sequence of RestoreCandidates resolved against a restore
// destination, without touching the filesystem beyond reading the manifest.
package restoreplan

import (
	"path/filepath"
	"strings"

	"github.com/wcbt-project/wcbt/internal/manifeststore"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
)

// Build loads the manifest at manifestPath and produces a RestorePlan
// staging its files into destination. Candidates preserve manifest order.
// Case-insensitive collisions between two rel_paths are rejected up front —
// a filesystem that doesn't distinguish case would otherwise silently drop
// one of the two files during staging.
func Build(manifestPath, destination string) (*model.RestorePlan, error) {
	m, err := manifeststore.ReadPath(manifestPath)
	if err != nil {
		return nil, err
	}

	payloadRoot := filepath.Join(filepath.Dir(manifestPath), "payload")

	seen := make(map[string]string, len(m.Files))
	candidates := make([]model.RestoreCandidate, 0, len(m.Files))
	for _, f := range m.Files {
		key := strings.ToLower(f.RelPath)
		if prior, ok := seen[key]; ok {
			return nil, errclass.ErrCaseCollision.WithMessagef(
				"rel_path %q collides with %q under a case-insensitive filesystem", f.RelPath, prior)
		}
		seen[key] = f.RelPath

		candidates = append(candidates, model.RestoreCandidate{
			Schema:       model.SchemaRestoreCandidateV1,
			SourceAbs:    filepath.Join(payloadRoot, filepath.FromSlash(f.RelPath)),
			RelPath:      f.RelPath,
			DestAbs:      filepath.Join(destination, filepath.FromSlash(f.RelPath)),
			ExpectedHash: f.HashHex,
			SizeBytes:    f.SizeBytes,
		})
	}

	return &model.RestorePlan{
		Schema:      model.SchemaRestorePlanV1,
		RunID:       m.RunID,
		Destination: destination,
		RunStatus:   m.RunStatus,
		Candidates:  candidates,
	}, nil
}
