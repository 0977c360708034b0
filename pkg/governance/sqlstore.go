package governance

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLRunStore is a gorm-backed RunStore. The summary row and the
// transition history are written in a single transaction so the two can
// never diverge.
type SQLRunStore struct {
	db *gorm.DB
}

// NewSQLRunStore creates a SQLRunStore on the given connection.
func NewSQLRunStore(db *gorm.DB) *SQLRunStore {
	return &SQLRunStore{db: db}
}

// AutoMigrate creates or updates the run tables. Idempotent.
func (s *SQLRunStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&RunStatusRecord{}); err != nil {
		return fmt.Errorf("auto-migrate run_status: %w", err)
	}
	if err := s.db.AutoMigrate(&RunTransitionRecord{}); err != nil {
		return fmt.Errorf("auto-migrate run_transitions: %w", err)
	}
	return nil
}

// Save upserts the summary row and rewrites the run's transition rows
// inside one transaction. The upsert overwrites all non-key columns.
func (s *SQLRunStore) Save(runID string, state *RunState) error {
	doc := state.Machine.Snapshot()

	summary := RunStatusRecord{
		RunID:            runID,
		Status:           doc.CurrentStatus,
		HITLRequired:     state.HITLRequired,
		ApprovalRequired: state.ApprovalRequired,
		ApprovalProvided: state.ApprovalProvided,
		UpdatedAt:        time.Now().UTC().Format(time.RFC3339Nano),
	}

	transitions := make([]RunTransitionRecord, len(doc.History))
	for i, rec := range doc.History {
		transitions[i] = RunTransitionRecord{
			RunID:      runID,
			Seq:        i,
			FromStatus: string(rec.From),
			ToStatus:   string(rec.To),
			Actor:      rec.Context.Actor,
			Role:       rec.Context.Role,
			AuthType:   rec.Context.AuthType,
			OccurredAt: rec.Context.Timestamp,
			Reason:     rec.Context.Reason,
			Metadata:   JSONMap(rec.Context.Metadata),
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "hitl_required", "approval_required", "approval_provided", "updated_at",
			}),
		}).Create(&summary).Error; err != nil {
			return fmt.Errorf("upsert run_status: %w", err)
		}

		if err := tx.Where("run_id = ?", runID).Delete(&RunTransitionRecord{}).Error; err != nil {
			return fmt.Errorf("clear run_transitions: %w", err)
		}
		if len(transitions) > 0 {
			if err := tx.Create(&transitions).Error; err != nil {
				return fmt.Errorf("insert run_transitions: %w", err)
			}
		}
		return nil
	})
}

// Load reconstructs the run state from the summary row and history
// rows. Returns nil, nil when the run is unknown; an unknown status tag
// in either table yields ErrCorruptedState.
func (s *SQLRunStore) Load(runID string) (*RunState, error) {
	var summary RunStatusRecord
	err := s.db.Where("run_id = ?", runID).First(&summary).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load run_status: %w", err)
	}

	var rows []RunTransitionRecord
	if err := s.db.Where("run_id = ?", runID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load run_transitions: %w", err)
	}

	doc := MachineDocument{CurrentStatus: summary.Status}
	for _, row := range rows {
		doc.History = append(doc.History, TransitionRecord{
			From: Status(row.FromStatus),
			To:   Status(row.ToStatus),
			Context: TransitionContext{
				Actor:     row.Actor,
				Role:      row.Role,
				AuthType:  row.AuthType,
				Timestamp: row.OccurredAt,
				Reason:    row.Reason,
				Metadata:  map[string]any(row.Metadata),
			},
		})
	}

	machine, err := RestoreMachine(doc)
	if err != nil {
		return nil, err
	}

	return &RunState{
		Machine:          machine,
		HITLRequired:     summary.HITLRequired,
		ApprovalRequired: summary.ApprovalRequired,
		ApprovalProvided: summary.ApprovalProvided,
	}, nil
}

// Delete removes the summary row and history rows for a run.
func (s *SQLRunStore) Delete(runID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&RunTransitionRecord{}).Error; err != nil {
			return fmt.Errorf("delete run_transitions: %w", err)
		}
		if err := tx.Where("run_id = ?", runID).Delete(&RunStatusRecord{}).Error; err != nil {
			return fmt.Errorf("delete run_status: %w", err)
		}
		return nil
	})
}

// Exists reports whether a summary row exists for the run.
func (s *SQLRunStore) Exists(runID string) (bool, error) {
	var count int64
	if err := s.db.Model(&RunStatusRecord{}).Where("run_id = ?", runID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count run_status: %w", err)
	}
	return count > 0, nil
}
