// Package verify implements wcbt's Verify: checking every file recorded in
// a run manifest against the filesystem and emitting a complete report
// trio, even when the run itself failed outright.
package verify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wcbt-project/wcbt/internal/artifact"
	"github.com/wcbt-project/wcbt/internal/hasher"
	"github.com/wcbt-project/wcbt/internal/manifeststore"
	"github.com/wcbt-project/wcbt/pkg/fsutil"
	"github.com/wcbt-project/wcbt/pkg/model"
)

const (
	reportJSONLName = "verify_report.jsonl"
	reportJSONName  = "verify_report.json"
	summaryTXTName  = "verify_summary.txt"
)

// Report bundles everything one Verify invocation produces.
type Report struct {
	Records []model.VerifyRecord
	Summary model.VerifyReport
}

// Run verifies the run at runDir (containing manifest.json and payload/)
// against its manifest, in manifest order, and writes verify_report.jsonl,
// verify_report.json, and verify_summary.txt into runDir. Each artifact is
// written to a temp sibling and renamed into place, so none is ever left
// half-written. The three renames are separate steps (the .jsonl, then the
// .json, then the .txt), so a crash between them can leave a new artifact
// beside an earlier one.
func Run(runDir string) (*Report, error) {
	m, err := manifeststore.ReadPath(filepath.Join(runDir, "manifest.json"))
	if err != nil {
		return nil, err
	}

	payloadRoot := filepath.Join(runDir, "payload")

	records := make([]model.VerifyRecord, 0, len(m.Files))
	counts := model.VerifyCounts{}

	for _, f := range m.Files {
		status := verifyOne(payloadRoot, f)
		switch status {
		case model.VerifyStatusOK:
			counts.OK++
		case model.VerifyStatusMissing:
			counts.Missing++
		case model.VerifyStatusUnreadable:
			counts.Unreadable++
		case model.VerifyStatusHashMismatch:
			counts.HashMismatch++
		}
		records = append(records, model.VerifyRecord{
			Schema: model.SchemaVerifyRecordV1,
			RunID:  m.RunID,
			Path:   f.RelPath,
			Status: status,
		})
	}

	summary := model.VerifyReport{
		Schema:    model.SchemaVerifyReportV1,
		RunID:     m.RunID,
		Algorithm: m.HashAlgorithm,
		Counts:    counts,
		Total:     len(m.Files),
	}

	if err := writeArtifacts(runDir, records, summary); err != nil {
		return nil, err
	}

	return &Report{Records: records, Summary: summary}, nil
}

func verifyOne(payloadRoot string, f model.FileEntry) model.VerifyStatus {
	path := filepath.Join(payloadRoot, filepath.FromSlash(f.RelPath))

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return model.VerifyStatusMissing
		}
		return model.VerifyStatusUnreadable
	}

	res, err := hasher.HashFile(path)
	if err != nil {
		return model.VerifyStatusUnreadable
	}

	if res.HashHex != f.HashHex || res.SizeBytes != f.SizeBytes {
		return model.VerifyStatusHashMismatch
	}
	return model.VerifyStatusOK
}

func writeArtifacts(runDir string, records []model.VerifyRecord, summary model.VerifyReport) error {
	jsonlPath := filepath.Join(runDir, reportJSONLName)
	if err := writeJSONLAtomic(jsonlPath, records); err != nil {
		return err
	}
	if err := artifact.WriteJSON(filepath.Join(runDir, reportJSONName), summary); err != nil {
		return err
	}
	return fsutil.AtomicWrite(filepath.Join(runDir, summaryTXTName), []byte(renderSummary(summary, records)), 0644)
}

// writeJSONLAtomic writes one canonical-JSON line per record to a temp file
// in the same directory, then renames into place — the same
// write-then-rename discipline as artifact.WriteJSON, extended to a
// multi-line document.
func writeJSONLAtomic(path string, records []model.VerifyRecord) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wcbt-tmp-*")
	if err != nil {
		return fmt.Errorf("create verify report tmp: %w", err)
	}
	tmpPath := tmp.Name()

	for _, rec := range records {
		if err := artifact.AppendJSONLine(tmpPath, rec); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close verify report tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename verify report into place: %w", err)
	}
	return nil
}

// renderSummary produces the deterministic, fixed-width verify_summary.txt
// body: a header line, then one sorted section per non-ok status with the
// affected paths, widths fixed so runs are byte-comparable.
func renderSummary(summary model.VerifyReport, records []model.VerifyRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run_id:        %s\n", summary.RunID)
	fmt.Fprintf(&b, "algorithm:     %s\n", summary.Algorithm)
	fmt.Fprintf(&b, "total:         %d\n", summary.Total)
	fmt.Fprintf(&b, "ok:            %d\n", summary.Counts.OK)
	fmt.Fprintf(&b, "missing:       %d\n", summary.Counts.Missing)
	fmt.Fprintf(&b, "unreadable:    %d\n", summary.Counts.Unreadable)
	fmt.Fprintf(&b, "hash_mismatch: %d\n", summary.Counts.HashMismatch)
	if summary.AllOK() {
		b.WriteString("result:        PASS\n")
	} else {
		b.WriteString("result:        FAIL\n")
	}

	for _, section := range []struct {
		title  string
		status model.VerifyStatus
	}{
		{"missing", model.VerifyStatusMissing},
		{"unreadable", model.VerifyStatusUnreadable},
		{"hash_mismatch", model.VerifyStatusHashMismatch},
	} {
		var paths []string
		for _, rec := range records {
			if rec.Status == section.status {
				paths = append(paths, rec.Path)
			}
		}
		if len(paths) == 0 {
			continue
		}
		sort.Strings(paths)
		fmt.Fprintf(&b, "\n%s:\n", section.title)
		for _, p := range paths {
			fmt.Fprintf(&b, "  %s\n", p)
		}
	}

	return b.String()
}
