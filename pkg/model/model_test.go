package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wcbt-project/wcbt/pkg/model"
)

func TestNewRunID_Format(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	id := model.NewRunID(now)
	assert.Equal(t, model.RunID("2025-01-01T12-00-00Z"), id)
}

func TestNewRunID_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2025, 1, 1, 7, 0, 0, 0, loc)
	id := model.NewRunID(now)
	assert.Equal(t, model.RunID("2025-01-01T12-00-00Z"), id)
}

func TestRunID_String(t *testing.T) {
	id := model.RunID("2025-01-01T12-00-00Z")
	assert.Equal(t, "2025-01-01T12-00-00Z", id.String())
}

func TestManifest_Fields(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := model.Manifest{
		Schema:          model.SchemaRunManifestV1,
		RunID:           model.NewRunID(now),
		CreatedAt:       now,
		SourceRoot:      "/src",
		DestinationRoot: "/dest",
		HashAlgorithm:   model.HashAlgorithmSHA256,
		RunStatus:       model.RunStatusOK,
		Files: []model.FileEntry{
			{RelPath: "a.txt", SizeBytes: 6, HashHex: "abc123", MtimeNs: 1},
			{RelPath: "sub/b.bin", SizeBytes: 3, HashHex: "def456", MtimeNs: 2},
		},
	}

	assert.Equal(t, model.SchemaRunManifestV1, m.Schema)
	assert.Equal(t, model.RunStatusOK, m.RunStatus)
	assert.Len(t, m.Files, 2)
	assert.Equal(t, "a.txt", m.Files[0].RelPath)
}

func TestFileEntry_OrderingField(t *testing.T) {
	entries := []model.FileEntry{
		{RelPath: "b.txt"},
		{RelPath: "a.txt"},
	}
	assert.Equal(t, "b.txt", entries[0].RelPath)
	assert.Equal(t, "a.txt", entries[1].RelPath)
}

func TestPlanOp_Fields(t *testing.T) {
	op := model.PlanOp{
		RelPath:      "a.txt",
		SourceAbs:    "/src/a.txt",
		DestAbs:      "/dest/run/payload/a.txt",
		SizeBytes:    6,
		ExpectedHash: "abc123",
	}

	assert.Equal(t, "a.txt", op.RelPath)
	assert.Equal(t, model.HashValue("abc123"), op.ExpectedHash)
}

func TestBackupPlan_Fields(t *testing.T) {
	plan := model.BackupPlan{
		Schema:        model.SchemaBackupPlanV1,
		HashAlgorithm: model.HashAlgorithmSHA256,
		Ops: []model.PlanOp{
			{RelPath: "a.txt"},
		},
	}

	assert.Equal(t, model.SchemaBackupPlanV1, plan.Schema)
	assert.Len(t, plan.Ops, 1)
}

func TestRestoreCandidate_Fields(t *testing.T) {
	c := model.RestoreCandidate{
		Schema:       model.SchemaRestoreCandidateV1,
		SourceAbs:    "/dest/run/payload/a.txt",
		RelPath:      "a.txt",
		DestAbs:      "/out/a.txt",
		ExpectedHash: "abc123",
		SizeBytes:    6,
	}

	assert.Equal(t, "a.txt", c.RelPath)
	assert.Equal(t, model.HashValue("abc123"), c.ExpectedHash)
}

func TestJournalRecord_Outcomes(t *testing.T) {
	assert.Equal(t, model.Outcome("copied"), model.OutcomeCopied)
	assert.Equal(t, model.Outcome("skipped_dry_run"), model.OutcomeSkippedDryRun)
	assert.Equal(t, model.Outcome("failed"), model.OutcomeFailed)

	rec := model.JournalRecord{
		Schema:  model.SchemaJournalRecordV1,
		RelPath: "a.txt",
		Outcome: model.OutcomeCopied,
	}
	assert.Equal(t, model.OutcomeCopied, rec.Outcome)
	assert.Empty(t, rec.Error)
}

func TestVerifyRecord_Statuses(t *testing.T) {
	assert.Equal(t, model.VerifyStatus("ok"), model.VerifyStatusOK)
	assert.Equal(t, model.VerifyStatus("missing"), model.VerifyStatusMissing)
	assert.Equal(t, model.VerifyStatus("unreadable"), model.VerifyStatusUnreadable)
	assert.Equal(t, model.VerifyStatus("hash_mismatch"), model.VerifyStatusHashMismatch)
}

func TestVerifyReport_AllOK(t *testing.T) {
	report := model.VerifyReport{
		Counts: model.VerifyCounts{OK: 2},
		Total:  2,
	}
	assert.True(t, report.AllOK())

	report.Counts.HashMismatch = 1
	report.Total = 3
	assert.False(t, report.AllOK())
}

func TestLockRecord_IsExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	notExpired := &model.LockRecord{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, notExpired.IsExpired(now))

	expired := &model.LockRecord{ExpiresAt: now.Add(-time.Minute)}
	assert.True(t, expired.IsExpired(now))
}

func TestStageCopySummary_Fields(t *testing.T) {
	summary := model.StageCopySummary{
		Status: model.StageStatusSuccess,
		Copied: 2,
		Total:  2,
	}
	assert.Equal(t, model.StageStatusSuccess, summary.Status)
	assert.Equal(t, 2, summary.Copied)
}

func TestStageVerifySummary_Modes(t *testing.T) {
	assert.Equal(t, model.StageVerifyMode("none"), model.StageVerifyNone)
	assert.Equal(t, model.StageVerifyMode("size"), model.StageVerifySize)
}
