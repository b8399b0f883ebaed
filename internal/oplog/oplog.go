// Package oplog implements the destination-level operational log: a
// hash-chained JSONL append log recording every pipeline invocation
// (backup, restore, verify) against a destination root, independent of any
// single run's execution_journal.jsonl. It is pure observability — never
// consulted by a pipeline decision.
package oplog

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wcbt-project/wcbt/pkg/jsonutil"
	"github.com/wcbt-project/wcbt/pkg/model"
)

// Operation identifies which pipeline an entry records.
type Operation string

const (
	OperationBackup  Operation = "backup"
	OperationRestore Operation = "restore"
	OperationVerify  Operation = "verify"
)

// Record is one hash-chained entry in the operational log.
type Record struct {
	Timestamp  time.Time      `json:"timestamp"`
	Operation  Operation      `json:"operation"`
	RunID      model.RunID    `json:"run_id"`
	Detail     map[string]any `json:"detail,omitempty"`
	PrevHash   model.HashValue `json:"prev_hash,omitempty"`
	RecordHash model.HashValue `json:"record_hash"`
}

// Appender appends Records to <destination>/.wcbt_log/oplog.jsonl under an
// advisory file lock, so multiple wcbt processes against the same
// destination never interleave partial lines.
type Appender struct {
	path string
	mu   sync.Mutex
}

// NewAppender creates an Appender for destinationRoot.
func NewAppender(destinationRoot string) *Appender {
	return &Appender{path: filepath.Join(destinationRoot, ".wcbt_log", "oplog.jsonl")}
}

// Append records one pipeline invocation.
func (a *Appender) Append(op Operation, runID model.RunID, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("create oplog dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open oplog: %w", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("flock oplog: %w", err)
	}
	defer syscall.Flock(int(file.Fd()), syscall.LOCK_UN)

	prevHash, err := lastRecordHashLocked(file)
	if err != nil {
		return fmt.Errorf("read last oplog hash: %w", err)
	}

	rec := Record{
		Timestamp: time.Now().UTC(),
		Operation: op,
		RunID:     runID,
		Detail:    detail,
		PrevHash:  prevHash,
	}
	rec.RecordHash, err = computeRecordHash(rec)
	if err != nil {
		return fmt.Errorf("hash oplog record: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal oplog record: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek oplog: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append oplog: %w", err)
	}
	return file.Sync()
}

func lastRecordHashLocked(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek oplog start: %w", err)
	}

	var last model.HashValue
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		last = rec.RecordHash
	}
	return last, scanner.Err()
}

func computeRecordHash(rec Record) (model.HashValue, error) {
	unsigned := rec
	unsigned.RecordHash = ""
	data, err := jsonutil.CanonicalMarshal(unsigned)
	if err != nil {
		return "", fmt.Errorf("canonical marshal oplog record: %w", err)
	}
	sum := sha256.Sum256(data)
	return model.HashValue(hex.EncodeToString(sum[:])), nil
}
