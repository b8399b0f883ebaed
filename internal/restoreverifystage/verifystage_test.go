package restoreverifystage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcbt-project/wcbt/internal/restoreverifystage"
	"github.com/wcbt-project/wcbt/pkg/model"
)

func TestRun_ModeNoneAlwaysSucceeds(t *testing.T) {
	stageRoot := t.TempDir()
	stageDir := t.TempDir()

	p := &model.RestorePlan{
		RunID: "r1",
		Candidates: []model.RestoreCandidate{
			{RelPath: "missing.txt", SizeBytes: 100},
		},
	}

	summary, err := restoreverifystage.Run(stageDir, stageRoot, p, model.StageVerifyNone)
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusSuccess, summary.Status)
	assert.Equal(t, 0, summary.Verified)
	assert.Equal(t, 0, summary.Failed)
}

func TestRun_ModeSizeDetectsMismatch(t *testing.T) {
	stageRoot := t.TempDir()
	stageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stageRoot, "a.txt"), []byte("hello"), 0644))

	p := &model.RestorePlan{
		RunID: "r1",
		Candidates: []model.RestoreCandidate{
			{RelPath: "a.txt", SizeBytes: 999},
		},
	}

	summary, err := restoreverifystage.Run(stageDir, stageRoot, p, model.StageVerifySize)
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusFailed, summary.Status)
	assert.Equal(t, 1, summary.Failed)

	data, err := os.ReadFile(filepath.Join(stageDir, "stage_verify_results.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hash_mismatch"`)
}

func TestRun_ModeSizeDetectsMissing(t *testing.T) {
	stageRoot := t.TempDir()
	stageDir := t.TempDir()

	p := &model.RestorePlan{
		RunID: "r1",
		Candidates: []model.RestoreCandidate{
			{RelPath: "gone.txt", SizeBytes: 5},
		},
	}

	summary, err := restoreverifystage.Run(stageDir, stageRoot, p, model.StageVerifySize)
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusFailed, summary.Status)

	data, err := os.ReadFile(filepath.Join(stageDir, "stage_verify_results.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"missing"`)
}

func TestRun_ModeSizeMatches(t *testing.T) {
	stageRoot := t.TempDir()
	stageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stageRoot, "a.txt"), []byte("hello"), 0644))

	p := &model.RestorePlan{
		RunID: "r1",
		Candidates: []model.RestoreCandidate{
			{RelPath: "a.txt", SizeBytes: 5},
		},
	}

	summary, err := restoreverifystage.Run(stageDir, stageRoot, p, model.StageVerifySize)
	require.NoError(t, err)
	assert.Equal(t, model.StageStatusSuccess, summary.Status)
	assert.Equal(t, 1, summary.Verified)
}
