package oplog_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcbt-project/wcbt/internal/oplog"
	"github.com/wcbt-project/wcbt/pkg/model"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		n++
	}
	require.NoError(t, scanner.Err())
	return n
}

func TestAppend_CreatesLogOnFirstCall(t *testing.T) {
	dest := t.TempDir()
	a := oplog.NewAppender(dest)

	require.NoError(t, a.Append(oplog.OperationBackup, model.RunID("r1"), nil))

	path := filepath.Join(dest, ".wcbt_log", "oplog.jsonl")
	assert.Equal(t, 1, countLines(t, path))
}

func TestAppend_ChainsHashesAcrossRecords(t *testing.T) {
	dest := t.TempDir()
	a := oplog.NewAppender(dest)

	require.NoError(t, a.Append(oplog.OperationBackup, model.RunID("r1"), nil))
	require.NoError(t, a.Append(oplog.OperationVerify, model.RunID("r1"), map[string]any{"ok": true}))
	require.NoError(t, a.Append(oplog.OperationRestore, model.RunID("r2"), nil))

	path := filepath.Join(dest, ".wcbt_log", "oplog.jsonl")
	assert.Equal(t, 3, countLines(t, path))

	recs := readAll(t, path)
	require.Len(t, recs, 3)
	assert.Empty(t, recs[0].PrevHash)
	assert.Equal(t, recs[0].RecordHash, recs[1].PrevHash)
	assert.Equal(t, recs[1].RecordHash, recs[2].PrevHash)
	assert.NotEqual(t, recs[0].RecordHash, recs[1].RecordHash)
}

func TestAppend_DetailSurvivesRoundTrip(t *testing.T) {
	dest := t.TempDir()
	a := oplog.NewAppender(dest)

	require.NoError(t, a.Append(oplog.OperationVerify, model.RunID("r1"), map[string]any{"counts": "ok=3"}))

	path := filepath.Join(dest, ".wcbt_log", "oplog.jsonl")
	recs := readAll(t, path)
	require.Len(t, recs, 1)
	assert.Equal(t, "ok=3", recs[0].Detail["counts"])
}

func readAll(t *testing.T, path string) []oplog.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var recs []oplog.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec oplog.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		recs = append(recs, rec)
	}
	require.NoError(t, scanner.Err())
	return recs
}
