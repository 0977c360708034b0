package governance

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionWorker periodically removes run output directories whose
// journals have aged past the retention window. Journals stay
// append-only while a run is live; retention removes whole runs, never
// individual records.
type RetentionWorker struct {
	journal   *Journal
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewRetentionWorker creates a RetentionWorker over the journal's
// output tree. retentionDays <= 0 disables the worker. The sweep runs
// daily.
func NewRetentionWorker(journal *Journal, retentionDays int, logger *slog.Logger) *RetentionWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionWorker{
		journal:   journal,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  24 * time.Hour,
		logger:    logger,
	}
}

// Run starts the retention worker. It runs until the context is
// cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.journal == nil || w.retention <= 0 {
		w.logger.Info("journal retention worker disabled",
			"retentionDays", int(w.retention.Hours()/24))
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("journal retention worker started",
		"retentionDays", int(w.retention.Hours()/24),
		"interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("journal retention worker stopped")
			return
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep performs a single retention pass, removing run directories
// whose journal was last written before the cutoff.
func (w *RetentionWorker) Sweep() {
	if w.journal == nil || w.retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-w.retention)

	entries, err := os.ReadDir(w.journal.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Error("journal retention sweep failed", "error", err)
		}
		return
	}

	var deleted int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(w.journal.dir, entry.Name(), "governance_audit.jsonl"))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.journal.dir, entry.Name())); err != nil {
			w.logger.Error("journal retention delete failed",
				"run_id", entry.Name(), "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		w.logger.Info("journal retention sweep completed",
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339))
	}
}
