// Package runinspect classifies the run directories under a destination
// root; pkg/wcbt.Restore calls InspectRun before RestorePlan so a restore
// never trusts a manifest blindly (Verify reads the manifest through
// manifeststore without calling it): a run directory can be complete, a
// recorded partial failure, or mid-write with no manifest at all.
package runinspect

import (
	"os"
	"path/filepath"

	"github.com/wcbt-project/wcbt/internal/manifeststore"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/model"
)

// Status classifies one run directory under a destination root.
type Status string

const (
	// StatusOK: manifest present with run_status "ok".
	StatusOK Status = "ok"
	// StatusPartial: manifest present with run_status "partial" — some
	// files failed during BackupExecute but the manifest still committed.
	StatusPartial Status = "partial"
	// StatusIncomplete: payload or journal exists but no manifest was ever
	// written — the run crashed or is still in progress.
	StatusIncomplete Status = "incomplete"
)

const (
	payloadDirName = "payload"
	journalName    = "execution_journal.jsonl"
)

// Finding is one run directory's classification.
type Finding struct {
	RunID  model.RunID
	Status Status
	// Manifest is non-nil when Status is StatusOK or StatusPartial.
	Manifest *model.Manifest
}

// Inspect classifies every run directory under destinationRoot, in
// ascending run id order.
func Inspect(destinationRoot string) ([]Finding, error) {
	runIDs, err := manifeststore.ListRuns(destinationRoot)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(runIDs))
	for _, runID := range runIDs {
		f, err := InspectRun(destinationRoot, runID)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f)
	}
	return findings, nil
}

// InspectRun classifies a single run directory.
func InspectRun(destinationRoot string, runID model.RunID) (Finding, error) {
	m, err := manifeststore.Read(destinationRoot, runID)
	if err == nil {
		status := StatusOK
		if m.RunStatus == model.RunStatusPartial {
			status = StatusPartial
		}
		return Finding{RunID: runID, Status: status, Manifest: m}, nil
	}
	if !isIncompleteRun(err) {
		return Finding{}, err
	}

	// No manifest. A run directory with neither payload nor journal isn't
	// a run wcbt produced at all, so it's reported as a fault rather than
	// a mid-write crash.
	if !HasPayloadOrJournal(destinationRoot, runID) {
		return Finding{}, errclass.ErrIncompleteRun.WithMessagef("run %s has no manifest, payload, or journal", runID)
	}

	return Finding{RunID: runID, Status: StatusIncomplete}, nil
}

func isIncompleteRun(err error) bool {
	werr, ok := err.(*errclass.WCBTError)
	return ok && werr.Is(errclass.ErrIncompleteRun)
}

// HasPayloadOrJournal reports whether runDir shows any sign of an attempted
// run (payload tree or journal file), used to distinguish a genuinely
// missing run directory from one that crashed before writing a manifest.
func HasPayloadOrJournal(destinationRoot string, runID model.RunID) bool {
	runDir := filepath.Join(destinationRoot, runID.String())
	if _, err := os.Stat(filepath.Join(runDir, payloadDirName)); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(runDir, journalName)); err == nil {
		return true
	}
	return false
}
