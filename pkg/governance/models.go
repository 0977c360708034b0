package governance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a custom GORM type for map[string]any stored as JSON text.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface for JSONMap.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONMap.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// RunStatusRecord is the flat per-run summary row. The full transition
// history lives in run_transitions and in the per-run audit journal;
// this row exists for cheap status lookups and must stay consistent
// with both.
type RunStatusRecord struct {
	RunID            string `gorm:"primaryKey;column:run_id"`
	Status           string `gorm:"column:status;not null"`
	HITLRequired     bool   `gorm:"column:hitl_required;not null"`
	ApprovalRequired bool   `gorm:"column:approval_required;not null"`
	ApprovalProvided bool   `gorm:"column:approval_provided;not null"`
	UpdatedAt        string `gorm:"column:updated_at;not null"` // RFC3339 UTC
}

// TableName returns the GORM table name.
func (RunStatusRecord) TableName() string { return "run_status" }

// RunTransitionRecord is one persisted history entry. Seq preserves
// program order within a run.
type RunTransitionRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement;column:id"`
	RunID      string    `gorm:"column:run_id;index:idx_run_transitions_run,priority:1;not null"`
	Seq        int       `gorm:"column:seq;index:idx_run_transitions_run,priority:2;not null"`
	FromStatus string    `gorm:"column:from_status;not null"`
	ToStatus   string    `gorm:"column:to_status;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	Role       string    `gorm:"column:role;not null"`
	AuthType   string    `gorm:"column:auth_type;not null"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
	Reason     string    `gorm:"column:reason"`
	Metadata   JSONMap   `gorm:"column:metadata;type:text"`
}

// TableName returns the GORM table name.
func (RunTransitionRecord) TableName() string { return "run_transitions" }
