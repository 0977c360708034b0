package governance

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Journal event names. Order inside a run's journal mirrors the order
// in which the corresponding mutations completed.
const (
	EventConfig          = "GOV_CONFIG"
	EventStatusComputed  = "GOV_STATUS_COMPUTED"
	EventHardRuleApplied = "GOV_HARD_RULE_APPLIED"
	EventDBPersisted     = "GOV_DB_PERSISTED"
	EventReviewAction    = "GOV_REVIEW_ACTION"
	EventAdminOverride   = "GOV_ADMIN_OVERRIDE"
)

// JournalEntry is one record in a run's governance audit journal.
type JournalEntry struct {
	TS      string         `json:"ts"`
	RunID   string         `json:"run_id"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Journal is the per-run append-only governance audit log. Each run
// gets its own JSONL file under <dir>/<run_id>/governance_audit.jsonl.
// The journal is additive only; nothing here rewrites or truncates.
type Journal struct {
	dir string
}

// NewJournal creates a journal rooted at dir.
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

// Path returns the journal file path for a run, always with forward
// slashes so the value is stable across platforms in API responses.
func (j *Journal) Path(runID string) string {
	return filepath.ToSlash(filepath.Join(j.dir, runID, "governance_audit.jsonl"))
}

// Append writes one event record as a single line. The write is one
// Write call on an O_APPEND handle so concurrent appenders cannot
// interleave within a line.
func (j *Journal) Append(runID, event string, payload map[string]any) error {
	entry := JournalEntry{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		RunID:   runID,
		Event:   event,
		Payload: payload,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	line = append(line, '\n')

	runDir := filepath.Join(j.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "governance_audit.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Trail reads all entries for a run. Blank and malformed lines are
// skipped so a partially written or newer-format journal still reads.
// A missing journal yields an empty trail, not an error.
func (j *Journal) Trail(runID string) ([]JournalEntry, error) {
	f, err := os.Open(filepath.Join(j.dir, runID, "governance_audit.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry JournalEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}
