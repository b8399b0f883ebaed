package model

// StageCopyRecord is one line in stage_copy_results.jsonl, one per restore
// candidate.
type StageCopyRecord struct {
	Schema  string  `json:"schema"`
	RunID   RunID   `json:"run_id"`
	RelPath string  `json:"rel_path"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// StageCopySummary is the aggregate stage_copy_summary.json document.
type StageCopySummary struct {
	Schema  string      `json:"schema"`
	RunID   RunID       `json:"run_id"`
	Status  StageStatus `json:"status"`
	Copied  int         `json:"copied"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Total   int         `json:"total"`
}

// StageVerifyRecord is one line in stage_verify_results.jsonl.
type StageVerifyRecord struct {
	Schema  string       `json:"schema"`
	RunID   RunID        `json:"run_id"`
	RelPath string       `json:"rel_path"`
	Status  VerifyStatus `json:"status"`
}

// StageVerifySummary is the aggregate stage_verify_summary.json document.
type StageVerifySummary struct {
	Schema   string          `json:"schema"`
	RunID    RunID           `json:"run_id"`
	Mode     StageVerifyMode `json:"mode"`
	Status   StageStatus     `json:"status"`
	Verified int             `json:"verified"`
	Failed   int             `json:"failed"`
	Total    int             `json:"total"`
}
