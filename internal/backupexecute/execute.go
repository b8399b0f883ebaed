// Package backupexecute implements wcbt's BackupExecute: given a
// BackupPlan, copies each planned file into the run's payload tree,
// appends a journal record per op in plan order, then writes the manifest
// (or, in dry-run mode, the plan itself).
package backupexecute

import (
	"io"
	"os"
	"path/filepath"

	"github.com/wcbt-project/wcbt/internal/artifact"
	"github.com/wcbt-project/wcbt/internal/clock"
	"github.com/wcbt-project/wcbt/internal/hasher"
	"github.com/wcbt-project/wcbt/internal/manifeststore"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/hooks"
	"github.com/wcbt-project/wcbt/pkg/model"
	"github.com/wcbt-project/wcbt/pkg/progress"
)

const (
	payloadDirName = "payload"
	journalName    = "execution_journal.jsonl"
	planName       = "plan.json"
)

// Options controls one BackupExecute invocation.
type Options struct {
	DryRun bool
	// Cancelled is polled between ops; when it returns true the in-flight
	// op is abandoned with outcome "failed" / cause "cancelled" and no
	// further ops are attempted.
	Cancelled func() bool
	// Hooks wraps the copy step's destination writer. The zero value
	// selects the no-op pair, which is invisible to every outcome below.
	Hooks hooks.Pair
	// Progress, if set, is called once per op after it is journaled.
	Progress progress.Callback
}

func (o Options) hooks() hooks.Pair {
	if o.Hooks.Compression == nil || o.Hooks.Encryption == nil {
		return hooks.Default()
	}
	return o.Hooks
}

// Result summarizes a completed (or partially completed) run.
type Result struct {
	RunID     model.RunID
	RunStatus model.RunStatus
	Manifest  *model.Manifest // nil in dry-run mode
}

// Run executes plan against destinationRoot per opts.
func Run(c clock.Clock, plan *model.BackupPlan, opts Options) (*Result, error) {
	runDir := filepath.Join(plan.DestinationRoot, plan.RunID.String())
	payloadDir := filepath.Join(runDir, payloadDirName)
	journalPath := filepath.Join(runDir, journalName)

	if _, err := os.Stat(runDir); err == nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("run id %s already exists under %s", plan.RunID, plan.DestinationRoot)
	} else if !os.IsNotExist(err) {
		return nil, errclass.ErrIOError.WithMessagef("stat run directory %s: %v", runDir, err)
	}

	if err := os.MkdirAll(payloadDir, 0755); err != nil {
		return nil, errclass.ErrIOError.WithMessagef("create payload directory: %v", err)
	}

	if opts.DryRun {
		for _, op := range plan.Ops {
			if err := appendJournal(journalPath, plan.RunID, op.RelPath, model.OutcomeSkippedDryRun, "", "", 0); err != nil {
				return nil, err
			}
		}
		if err := artifact.WriteJSON(filepath.Join(runDir, planName), plan); err != nil {
			return nil, err
		}
		return &Result{RunID: plan.RunID, RunStatus: model.RunStatusOK}, nil
	}

	var files []model.FileEntry
	anyFailed := false
	total := len(plan.Ops)

	for i, op := range plan.Ops {
		if opts.Cancelled != nil && opts.Cancelled() {
			if err := appendJournal(journalPath, plan.RunID, op.RelPath, model.OutcomeFailed, string(errclass.ErrCancelled.Code), "", 0); err != nil {
				return nil, err
			}
			anyFailed = true
			break
		}

		entry, opErr := copyOne(op, opts.hooks())
		if opErr != nil {
			if err := appendJournal(journalPath, plan.RunID, op.RelPath, model.OutcomeFailed, classify(opErr), "", 0); err != nil {
				return nil, err
			}
			anyFailed = true
			reportProgress(opts.Progress, i+1, total, op.RelPath)
			continue
		}

		if err := appendJournal(journalPath, plan.RunID, op.RelPath, model.OutcomeCopied, "", entry.HashHex, entry.SizeBytes); err != nil {
			return nil, err
		}
		files = append(files, entry)
		reportProgress(opts.Progress, i+1, total, op.RelPath)
	}

	runStatus := model.RunStatusOK
	if anyFailed {
		runStatus = model.RunStatusPartial
	}

	m := &model.Manifest{
		Schema:          model.SchemaRunManifestV1,
		RunID:           plan.RunID,
		CreatedAt:       c.Now(),
		SourceRoot:      plan.SourceRoot,
		DestinationRoot: plan.DestinationRoot,
		HashAlgorithm:   plan.HashAlgorithm,
		RunStatus:       runStatus,
		Files:           files,
	}

	if err := manifeststore.Write(plan.DestinationRoot, m); err != nil {
		return nil, err
	}

	return &Result{RunID: plan.RunID, RunStatus: runStatus, Manifest: m}, nil
}

// copyOne performs step 1-4 of the per-op algorithm: copy to a .part file
// while hashing the stream, compare against the expected hash, then rename
// into place. The .part file is removed on any failure. hooks wraps the
// part file's writer between the hash tee and the filesystem, so a real
// compression or encryption hook transforms what lands on disk while the
// hash and size recorded in the manifest still describe the plaintext.
func copyOne(op model.PlanOp, h hooks.Pair) (model.FileEntry, error) {
	if err := os.MkdirAll(filepath.Dir(op.DestAbs), 0755); err != nil {
		return model.FileEntry{}, errclass.ErrIOError.WithMessagef("create parent dir: %v", err)
	}

	partPath := op.DestAbs + ".part"

	src, err := os.Open(op.SourceAbs)
	if err != nil {
		return model.FileEntry{}, errclass.ErrUnreadable.WithMessagef("open source %s: %v", op.SourceAbs, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return model.FileEntry{}, errclass.ErrIOError.WithMessagef("create %s: %v", partPath, err)
	}

	compressed := h.Compression.Encode(dst)
	encrypted := h.Encryption.Encrypt(compressed)

	tee := hasher.NewTeeHasher(encrypted)
	_, copyErr := io.Copy(tee, src)
	encErr := encrypted.Close()
	compErr := compressed.Close()
	closeErr := dst.Close()

	if copyErr != nil || encErr != nil || compErr != nil || closeErr != nil {
		os.Remove(partPath)
		if copyErr != nil {
			return model.FileEntry{}, errclass.ErrIOError.WithMessagef("copy %s: %v", op.RelPath, copyErr)
		}
		if encErr != nil {
			return model.FileEntry{}, errclass.ErrIOError.WithMessagef("finalize encryption for %s: %v", op.RelPath, encErr)
		}
		if compErr != nil {
			return model.FileEntry{}, errclass.ErrIOError.WithMessagef("finalize compression for %s: %v", op.RelPath, compErr)
		}
		return model.FileEntry{}, errclass.ErrIOError.WithMessagef("close %s: %v", partPath, closeErr)
	}

	res := tee.Result()
	if res.HashHex != op.ExpectedHash || res.SizeBytes != op.SizeBytes {
		os.Remove(partPath)
		return model.FileEntry{}, errclass.ErrHashMismatch.WithMessagef(
			"content changed during copy: %s (expected hash %s size %d, got hash %s size %d)",
			op.RelPath, op.ExpectedHash, op.SizeBytes, res.HashHex, res.SizeBytes)
	}

	if err := os.Rename(partPath, op.DestAbs); err != nil {
		os.Remove(partPath)
		return model.FileEntry{}, errclass.ErrIOError.WithMessagef("rename %s into place: %v", op.RelPath, err)
	}

	return model.FileEntry{
		RelPath:   op.RelPath,
		SizeBytes: res.SizeBytes,
		HashHex:   res.HashHex,
		MtimeNs:   op.MtimeNs,
	}, nil
}

func reportProgress(cb progress.Callback, current, total int, relPath string) {
	if cb != nil {
		cb("backup", current, total, relPath)
	}
}

func classify(err error) string {
	if werr, ok := err.(*errclass.WCBTError); ok {
		return string(werr.Code)
	}
	return string(errclass.ErrIOError.Code)
}

func appendJournal(path string, runID model.RunID, relPath string, outcome model.Outcome, errCode string, observedHash model.HashValue, observedSize int64) error {
	rec := model.JournalRecord{
		Schema:       model.SchemaJournalRecordV1,
		RunID:        runID,
		RelPath:      relPath,
		Outcome:      outcome,
		Error:        errCode,
		ObservedHash: observedHash,
		ObservedSize: observedSize,
	}
	return artifact.AppendJSONLine(path, rec)
}
