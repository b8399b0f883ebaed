// Package backupplan implements wcbt's BackupPlan: turning a BackupScan
// into a content-addressed, deterministically ordered sequence of copy
// operations. Hashing happens here so the plan is meaningful standalone —
// dry-runs and later verification never need to re-read the source.
package backupplan

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/wcbt-project/wcbt/internal/backupscan"
	"github.com/wcbt-project/wcbt/internal/hasher"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
)

// Build scans sourceRoot and produces a BackupPlan whose ops are ordered
// lexicographically by rel_path — the same order the resulting manifest
// will carry.
func Build(sourceRoot, destinationRoot string, runID model.RunID) (*model.BackupPlan, error) {
	entries, err := backupscan.Scan(sourceRoot)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })

	ops := make([]model.PlanOp, 0, len(entries))
	for _, e := range entries {
		res, err := hasher.HashFile(e.AbsPath)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(e.AbsPath)
		if err != nil {
			return nil, errclass.ErrUnreadable.WithMessagef("stat %s: %v", e.AbsPath, err)
		}
		ops = append(ops, model.PlanOp{
			RelPath:      e.RelPath,
			SourceAbs:    e.AbsPath,
			DestAbs:      filepath.Join(destinationRoot, runID.String(), "payload", filepath.FromSlash(e.RelPath)),
			SizeBytes:    res.SizeBytes,
			ExpectedHash: res.HashHex,
			MtimeNs:      info.ModTime().UnixNano(),
		})
	}

	return &model.BackupPlan{
		Schema:          model.SchemaBackupPlanV1,
		RunID:           runID,
		SourceRoot:      sourceRoot,
		DestinationRoot: destinationRoot,
		HashAlgorithm:   model.HashAlgorithmSHA256,
		Ops:             ops,
	}, nil
}
