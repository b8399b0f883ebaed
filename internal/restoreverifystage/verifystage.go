// Package restoreverifystage implements wcbt's RestoreVerifyStage: checking
// a staged restore tree against the originating manifest before
// RestoreExecute is allowed to promote it.
package restoreverifystage

import (
	"os"
	"path/filepath"

	"github.com/wcbt-project/wcbt/internal/artifact"
	"github.com/wcbt-project/wcbt/pkg/model"
)

const (
	verifyResultsName = "stage_verify_results.jsonl"
	verifySummaryName = "stage_verify_summary.json"
)

// Run verifies stageRoot against plan's candidates per mode, writing
// stage_verify_results.jsonl and stage_verify_summary.json into stageDir
// (the run's stage directory, the parent of stage_root/).
func Run(stageDir, stageRoot string, plan *model.RestorePlan, mode model.StageVerifyMode) (*model.StageVerifySummary, error) {
	resultsPath := filepath.Join(stageDir, verifyResultsName)

	summary := &model.StageVerifySummary{
		Schema: model.SchemaStageVerifyV1,
		RunID:  plan.RunID,
		Mode:   mode,
		Total:  len(plan.Candidates),
	}

	for _, c := range plan.Candidates {
		status := verifyOne(stageRoot, c, mode)
		switch {
		case status != model.VerifyStatusOK:
			summary.Failed++
		case mode != model.StageVerifyNone:
			// none mode never counts a candidate as verified — it always
			// succeeds without inspecting the staged content.
			summary.Verified++
		}
		if err := appendResult(resultsPath, plan.RunID, c.RelPath, status); err != nil {
			return nil, err
		}
	}

	if summary.Failed == 0 {
		summary.Status = model.StageStatusSuccess
	} else {
		summary.Status = model.StageStatusFailed
	}

	if err := artifact.WriteJSON(filepath.Join(stageDir, verifySummaryName), summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func verifyOne(stageRoot string, c model.RestoreCandidate, mode model.StageVerifyMode) model.VerifyStatus {
	if mode == model.StageVerifyNone {
		return model.VerifyStatusOK
	}

	stagedPath := filepath.Join(stageRoot, filepath.FromSlash(c.RelPath))
	info, err := os.Stat(stagedPath)
	if err != nil {
		if os.IsNotExist(err) {
			return model.VerifyStatusMissing
		}
		return model.VerifyStatusUnreadable
	}

	switch mode {
	case model.StageVerifySize:
		if info.Size() != c.SizeBytes {
			return model.VerifyStatusHashMismatch
		}
		return model.VerifyStatusOK
	default:
		return model.VerifyStatusOK
	}
}

func appendResult(path string, runID model.RunID, relPath string, status model.VerifyStatus) error {
	rec := model.StageVerifyRecord{
		Schema:  model.SchemaStageVerifyV1,
		RunID:   runID,
		RelPath: relPath,
		Status:  status,
	}
	return artifact.AppendJSONLine(path, rec)
}
