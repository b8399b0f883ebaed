// Package restoreexecute implements wcbt's RestoreExecute: the atomic
// promotion of a verified stage root to the restore destination, preserving
// whatever previously occupied that destination as a sibling directory.
package restoreexecute

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/fsutil"
	"github.com/wcbt-project/wcbt/pkg/model"
)

const restoreArtifactsDirName = ".wcbt_restore"

// Result describes a completed promotion.
type Result struct {
	Destination     string
	PreservedPrior  string // empty if the destination did not previously exist
	ArtifactsDir    string // <destination>/.wcbt_restore/<run_id>
}

// Run promotes stageRoot to plan.Destination. stageDir is the run's stage
// directory (the parent of stage_root/, holding the stage_copy_* and
// stage_verify_* artifacts) and is moved alongside the promoted tree so the
// record of how it got there travels with it.
func Run(plan *model.RestorePlan, stageDir, stageRoot string) (*Result, error) {
	destination := plan.Destination
	destParent := filepath.Dir(destination)

	if crossDevice(stageRoot, destParent) {
		return nil, errclass.ErrCrossDeviceStage.WithMessagef(
			"stage root %s and destination parent %s are on different filesystems", stageRoot, destParent)
	}

	res := &Result{Destination: destination}

	if _, err := os.Stat(destination); os.IsNotExist(err) {
		if err := fsutil.RenameAndSync(stageRoot, destination); err != nil {
			return nil, errclass.ErrPromotionFailed.WithMessagef("promote stage to new destination: %v", err)
		}
	} else if err != nil {
		return nil, errclass.ErrIOError.WithMessagef("stat destination: %v", err)
	} else {
		preserved := filepath.Join(destParent,
			fmt.Sprintf(".wcbt_restore_previous_%s_%s", filepath.Base(destination), plan.RunID))

		if err := fsutil.RenameAndSync(destination, preserved); err != nil {
			return nil, errclass.ErrPromotionFailed.WithMessagef("preserve prior destination: %v", err)
		}

		if err := fsutil.RenameAndSync(stageRoot, destination); err != nil {
			if rollbackErr := fsutil.RenameAndSync(preserved, destination); rollbackErr != nil {
				return nil, errclass.ErrPromotionFailed.WithMessagef(
					"promote stage failed (%v) and rollback of preserved prior destination also failed: %v", err, rollbackErr)
			}
			return nil, errclass.ErrPromotionFailed.WithMessagef("promote stage to existing destination: %v", err)
		}

		res.PreservedPrior = preserved
	}

	artifactsDir := filepath.Join(destination, restoreArtifactsDirName, plan.RunID.String())
	if err := os.MkdirAll(filepath.Dir(artifactsDir), 0755); err != nil {
		return nil, errclass.ErrIOError.WithMessagef("create restore artifacts parent: %v", err)
	}
	if err := os.Rename(stageDir, artifactsDir); err != nil {
		return nil, errclass.ErrIOError.WithMessagef("move stage artifacts into place: %v", err)
	}
	res.ArtifactsDir = artifactsDir

	return res, nil
}
