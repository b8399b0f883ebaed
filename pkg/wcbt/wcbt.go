// Package wcbt is the public facade over the backup/restore/verify engine:
// the sole dependency surface cmd/wcbt and internal/cli use. It wires
// together the clock, profile lock, scan/plan/execute pipelines, restore
// pipeline, verify, and operational log into three entry points —
// Backup, Restore, and Verify.
package wcbt

import (
	"path/filepath"
	"time"

	"github.com/wcbt-project/wcbt/internal/backupexecute"
	"github.com/wcbt-project/wcbt/internal/backupplan"
	"github.com/wcbt-project/wcbt/internal/clock"
	"github.com/wcbt-project/wcbt/internal/oplog"
	"github.com/wcbt-project/wcbt/internal/profilelock"
	"github.com/wcbt-project/wcbt/internal/restoreexecute"
	"github.com/wcbt-project/wcbt/internal/restoreplan"
	"github.com/wcbt-project/wcbt/internal/restorestage"
	"github.com/wcbt-project/wcbt/internal/restoreverifystage"
	"github.com/wcbt-project/wcbt/internal/runinspect"
	"github.com/wcbt-project/wcbt/internal/verify"
	"github.com/wcbt-project/wcbt/pkg/config"
	"github.com/wcbt-project/wcbt/pkg/errclass"
	"github.com/wcbt-project/wcbt/pkg/hooks"
	"github.com/wcbt-project/wcbt/pkg/model"
	"github.com/wcbt-project/wcbt/pkg/progress"
)

// DefaultLockPolicy is used whenever a caller does not supply its own and
// the destination has no .wcbt_config.yaml lock section.
var DefaultLockPolicy = model.LockPolicy{
	DefaultLeaseTTL:    10 * time.Minute,
	ClockSkewTolerance: 30 * time.Second,
}

// lockPolicyFrom resolves the effective lock policy: an explicit request
// override wins, otherwise the destination's config file, otherwise
// DefaultLockPolicy.
func lockPolicyFrom(req model.LockPolicy, cfg *config.Config) model.LockPolicy {
	if req != (model.LockPolicy{}) {
		return req
	}
	leaseTTL, err := cfg.LeaseTTL()
	if err != nil {
		return DefaultLockPolicy
	}
	skew, err := cfg.ClockSkewTolerance()
	if err != nil {
		return DefaultLockPolicy
	}
	return model.LockPolicy{DefaultLeaseTTL: leaseTTL, ClockSkewTolerance: skew}
}

// profileName is fixed: wcbt locks a destination root as a whole, not per
// sub-profile. Kept as a named constant so a future multi-profile
// destination only needs to thread a real name through here.
const profileName = "default"

// BackupRequest configures one Backup invocation.
type BackupRequest struct {
	SourceRoot      string
	DestinationRoot string
	DryRun          bool
	Hooks           hooks.Pair
	Clock           clock.Clock
	LockPolicy      model.LockPolicy
	// Progress, if set, receives one callback per file copied.
	Progress progress.Callback
}

// BackupOutcome is what Backup returns.
type BackupOutcome struct {
	RunID     model.RunID
	RunStatus model.RunStatus
	Manifest  *model.Manifest // nil in dry-run mode
}

// Backup runs BackupScan, BackupPlan, and BackupExecute under the
// destination's profile lock, recording the invocation in the operational
// log once the lock is held, whether it then succeeds or fails. A config
// load or lock acquisition failure returns before anything is logged.
func Backup(req BackupRequest) (*BackupOutcome, error) {
	c := req.Clock
	if c == nil {
		c = clock.System{}
	}

	cfg, err := config.Load(req.DestinationRoot)
	if err != nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("load destination config: %v", err)
	}
	policy := lockPolicyFrom(req.LockPolicy, cfg)

	locker := profilelock.NewManager(req.DestinationRoot, policy, c)
	handle, err := locker.Acquire(profileName)
	if err != nil {
		return nil, err
	}
	defer locker.Release(handle)

	runID := model.NewRunID(c.Now())
	log := oplog.NewAppender(req.DestinationRoot)

	plan, err := backupplan.Build(req.SourceRoot, req.DestinationRoot, runID)
	if err != nil {
		appendOplog(log, oplog.OperationBackup, runID, "failed", err)
		return nil, err
	}

	res, err := backupexecute.Run(c, plan, backupexecute.Options{DryRun: req.DryRun, Hooks: req.Hooks, Progress: req.Progress})
	if err != nil {
		appendOplog(log, oplog.OperationBackup, runID, "failed", err)
		return nil, err
	}

	appendOplog(log, oplog.OperationBackup, runID, string(res.RunStatus), nil)
	return &BackupOutcome{RunID: res.RunID, RunStatus: res.RunStatus, Manifest: res.Manifest}, nil
}

// RestoreRequest configures one Restore invocation.
type RestoreRequest struct {
	ManifestPath string
	Destination  string
	DryRun       bool
	VerifyMode   model.StageVerifyMode
	Hooks        hooks.Pair
	Clock        clock.Clock
	LockPolicy   model.LockPolicy
	// Progress, if set, receives one callback per candidate staged.
	Progress progress.Callback
}

// RestoreOutcome is what Restore returns.
type RestoreOutcome struct {
	RunID          model.RunID
	Destination    string
	PreservedPrior string
	StageSummary   *model.StageCopySummary
	VerifySummary  *model.StageVerifySummary // nil in dry-run mode
}

// Restore runs RestorePlan, RestoreStage, RestoreVerifyStage, and
// RestoreExecute in sequence, aborting promotion if staging or stage
// verification fails. Dry runs stop after staging and never promote.
func Restore(req RestoreRequest) (*RestoreOutcome, error) {
	c := req.Clock
	if c == nil {
		c = clock.System{}
	}

	cfg, err := config.Load(req.Destination)
	if err != nil {
		return nil, errclass.ErrManifestInvalid.WithMessagef("load destination config: %v", err)
	}
	policy := lockPolicyFrom(req.LockPolicy, cfg)

	runDir := filepath.Dir(req.ManifestPath)
	runID := model.RunID(filepath.Base(runDir))

	if _, err := runinspect.InspectRun(filepath.Dir(runDir), runID); err != nil {
		return nil, err
	}

	locker := profilelock.NewManager(req.Destination, policy, c)
	handle, err := locker.Acquire(profileName)
	if err != nil {
		return nil, err
	}
	defer locker.Release(handle)

	log := oplog.NewAppender(req.Destination)

	plan, err := restoreplan.Build(req.ManifestPath, req.Destination)
	if err != nil {
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}

	stageRes, err := restorestage.Run(plan, restorestage.Options{DryRun: req.DryRun, Hooks: req.Hooks, Progress: req.Progress})
	if err != nil {
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}
	if req.DryRun {
		appendOplog(log, oplog.OperationRestore, runID, "dry_run", nil)
		return &RestoreOutcome{RunID: plan.RunID, StageSummary: stageRes.Summary}, nil
	}
	if stageRes.Summary.Status == model.StageStatusFailed {
		err := errclass.ErrIOError.WithMessagef("restore staging failed for run %s", plan.RunID)
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}

	mode := req.VerifyMode
	if mode == "" {
		mode = cfg.RestoreVerifyMode
	}
	if mode == "" {
		mode = model.StageVerifyNone
	}
	stageDir := restorestage.StageDir(req.Destination, plan.RunID)
	verifySummary, err := restoreverifystage.Run(stageDir, stageRes.StageRoot, plan, mode)
	if err != nil {
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}
	if verifySummary.Status == model.StageStatusFailed {
		err := errclass.ErrHashMismatch.WithMessagef("restore stage verification failed for run %s", plan.RunID)
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}

	execRes, err := restoreexecute.Run(plan, stageDir, stageRes.StageRoot)
	if err != nil {
		appendOplog(log, oplog.OperationRestore, runID, "failed", err)
		return nil, err
	}

	appendOplog(log, oplog.OperationRestore, runID, "ok", nil)
	return &RestoreOutcome{
		RunID:          plan.RunID,
		Destination:    execRes.Destination,
		PreservedPrior: execRes.PreservedPrior,
		StageSummary:   stageRes.Summary,
		VerifySummary:  verifySummary,
	}, nil
}

// VerifyRequest configures one Verify invocation.
type VerifyRequest struct {
	RunDir string
}

// VerifyOutcome is what Verify returns.
type VerifyOutcome struct {
	Report *verify.Report
}

// Verify runs Verify against a single run directory and records the
// invocation in that run's destination's operational log.
func Verify(req VerifyRequest) (*VerifyOutcome, error) {
	runID := model.RunID(filepath.Base(req.RunDir))
	destinationRoot := filepath.Dir(req.RunDir)
	log := oplog.NewAppender(destinationRoot)

	report, err := verify.Run(req.RunDir)
	if err != nil {
		appendOplog(log, oplog.OperationVerify, runID, "failed", err)
		return nil, err
	}

	status := "ok"
	if !report.Summary.AllOK() {
		status = "fail"
	}
	appendOplog(log, oplog.OperationVerify, runID, status, nil)
	return &VerifyOutcome{Report: report}, nil
}

// appendOplog best-effort records a pipeline invocation; a logging failure
// never masks or replaces the pipeline's own error.
func appendOplog(log *oplog.Appender, op oplog.Operation, runID model.RunID, status string, pipelineErr error) {
	detail := map[string]any{"status": status}
	if pipelineErr != nil {
		detail["error"] = pipelineErr.Error()
	}
	_ = log.Append(op, runID, detail)
}
