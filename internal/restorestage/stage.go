// Package restorestage implements wcbt's RestoreStage: copying a
// RestorePlan's candidates into an isolated stage root so RestoreExecute can
// promote (or discard) them without ever touching the destination mid-copy.
package restorestage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/wcbt-project/wcbt/internal/artifact"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/hooks"
	"github.com/wcbt-project/wcbt/pkg/model"
	"github.com/wcbt-project/wcbt/pkg/progress"
)

const (
	stageDirSuffix   = ".wcbt_stage"
	stageRootDirName = "stage_root"
	copyResultsName  = "stage_copy_results.jsonl"
	copySummaryName  = "stage_copy_summary.json"
)

// Options controls one RestoreStage invocation.
type Options struct {
	DryRun bool
	// Hooks unwraps the payload reader between the filesystem and the staged
	// .part file, reversing whatever BackupExecute's Hooks applied. The zero
	// value selects the no-op pair.
	Hooks hooks.Pair
	// Progress, if set, is called once per candidate after it is recorded.
	Progress progress.Callback
}

func (o Options) hooks() hooks.Pair {
	if o.Hooks.Compression == nil || o.Hooks.Encryption == nil {
		return hooks.Default()
	}
	return o.Hooks
}

// Result describes a completed (or aborted) stage build.
type Result struct {
	StageRoot string
	Summary   *model.StageCopySummary
}

// StageDir returns <destination>.wcbt_stage/<run_id> — the run's stage
// directory (the parent of stage_root/ and the two stage_copy_* artifacts).
func StageDir(destination string, runID model.RunID) string {
	return filepath.Join(destination+stageDirSuffix, runID.String())
}

// Run stages plan's candidates. A single candidate failure aborts the
// build after that candidate's record is flushed; the partial stage is
// retained for inspection, never cleaned up automatically.
func Run(plan *model.RestorePlan, opts Options) (*Result, error) {
	stageDir := StageDir(plan.Destination, plan.RunID)
	stageRoot := filepath.Join(stageDir, stageRootDirName)
	resultsPath := filepath.Join(stageDir, copyResultsName)

	if err := os.MkdirAll(stageRoot, 0755); err != nil {
		return nil, errclass.ErrIOError.WithMessagef("create stage root: %v", err)
	}

	summary := &model.StageCopySummary{
		Schema: model.SchemaStageCopyRecordV1,
		RunID:  plan.RunID,
		Total:  len(plan.Candidates),
	}

	total := len(plan.Candidates)
	for i, c := range plan.Candidates {
		stageDest := filepath.Join(stageRoot, filepath.FromSlash(c.RelPath))

		if opts.DryRun {
			summary.Skipped++
			if err := appendResult(resultsPath, plan.RunID, c.RelPath, model.OutcomeSkippedDryRun, ""); err != nil {
				return nil, err
			}
			reportProgress(opts.Progress, i+1, total, c.RelPath)
			continue
		}

		if err := copyOne(c, stageDest, opts.hooks()); err != nil {
			summary.Failed++
			if aerr := appendResult(resultsPath, plan.RunID, c.RelPath, model.OutcomeFailed, classify(err)); aerr != nil {
				return nil, aerr
			}
			summary.Status = model.StageStatusFailed
			if werr := artifact.WriteJSON(filepath.Join(stageDir, copySummaryName), summary); werr != nil {
				return nil, werr
			}
			return &Result{StageRoot: stageRoot, Summary: summary}, err
		}

		summary.Copied++
		if err := appendResult(resultsPath, plan.RunID, c.RelPath, model.OutcomeCopied, ""); err != nil {
			return nil, err
		}
		reportProgress(opts.Progress, i+1, total, c.RelPath)
	}

	summary.Status = model.StageStatusSuccess
	if err := artifact.WriteJSON(filepath.Join(stageDir, copySummaryName), summary); err != nil {
		return nil, err
	}

	return &Result{StageRoot: stageRoot, Summary: summary}, nil
}

// copyOne reverses whatever BackupExecute's hooks applied: the payload on
// disk is compress(encrypt(plaintext)), so decoding decompresses first and
// decrypts second.
func copyOne(c model.RestoreCandidate, stageDest string, h hooks.Pair) error {
	if err := os.MkdirAll(filepath.Dir(stageDest), 0755); err != nil {
		return errclass.ErrIOError.WithMessagef("create stage parent dir: %v", err)
	}

	partPath := stageDest + ".part"

	raw, err := os.Open(c.SourceAbs)
	if err != nil {
		return errclass.ErrUnreadable.WithMessagef("open payload %s: %v", c.SourceAbs, err)
	}
	defer raw.Close()

	decompressed, err := h.Compression.Decode(raw)
	if err != nil {
		return errclass.ErrUnreadable.WithMessagef("decompress payload %s: %v", c.SourceAbs, err)
	}
	defer decompressed.Close()

	plaintext, err := h.Encryption.Decrypt(decompressed)
	if err != nil {
		return errclass.ErrUnreadable.WithMessagef("decrypt payload %s: %v", c.SourceAbs, err)
	}
	defer plaintext.Close()

	dst, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errclass.ErrIOError.WithMessagef("create %s: %v", partPath, err)
	}

	_, copyErr := io.Copy(dst, plaintext)
	closeErr := dst.Close()

	if copyErr != nil || closeErr != nil {
		os.Remove(partPath)
		if copyErr != nil {
			return errclass.ErrIOError.WithMessagef("copy %s: %v", c.RelPath, copyErr)
		}
		return errclass.ErrIOError.WithMessagef("close %s: %v", partPath, closeErr)
	}

	if err := os.Rename(partPath, stageDest); err != nil {
		os.Remove(partPath)
		return errclass.ErrIOError.WithMessagef("rename %s into place: %v", c.RelPath, err)
	}
	return nil
}

func reportProgress(cb progress.Callback, current, total int, relPath string) {
	if cb != nil {
		cb("restore", current, total, relPath)
	}
}

func classify(err error) string {
	if werr, ok := err.(*errclass.WCBTError); ok {
		return string(werr.Code)
	}
	return string(errclass.ErrIOError.Code)
}

func appendResult(path string, runID model.RunID, relPath string, outcome model.Outcome, errCode string) error {
	rec := model.StageCopyRecord{
		Schema:  model.SchemaStageCopyRecordV1,
		RunID:   runID,
		RelPath: relPath,
		Outcome: outcome,
		Error:   errCode,
	}
	return artifact.AppendJSONLine(path, rec)
}
