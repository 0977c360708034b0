package governance

import (
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// RoleAdmin is the only role permitted to perform admin overrides.
const RoleAdmin = "admin"

// TransitionContext carries the auditable facts about who caused a
// transition and why. It must round-trip through persistence without
// loss.
type TransitionContext struct {
	Actor     string         `json:"actor"`
	Role      string         `json:"role"`
	AuthType  string         `json:"auth_type"`
	Timestamp time.Time      `json:"timestamp"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TransitionRecord is one entry in a run's transition history.
type TransitionRecord struct {
	From    Status            `json:"from"`
	To      Status            `json:"to"`
	Context TransitionContext `json:"context"`
}

// allowedTransitions is the normal-path transition table. Terminal
// statuses have empty sets; only admin override can leave a
// non-terminal state toward approved/rejected outside this table.
var allowedTransitions = map[Status]mapset.Set[Status]{
	StatusOK:          mapset.NewSet(StatusNeedsReview, StatusError),
	StatusNeedsReview: mapset.NewSet(StatusApproved, StatusRejected),
	StatusApproved:    mapset.NewSet[Status](),
	StatusRejected:    mapset.NewSet[Status](),
	StatusError:       mapset.NewSet[Status](),
}

// adminOverrideTargets are the only statuses an admin override may set.
var adminOverrideTargets = mapset.NewSet(StatusApproved, StatusRejected)

// StateMachine enforces legal status transitions for a single run and
// records every successful transition. Safe for concurrent use; all
// critical sections are short and never span I/O.
type StateMachine struct {
	mu      sync.RWMutex
	current Status
	history []TransitionRecord
}

// NewStateMachine creates a machine at the given initial status with
// empty history. The initial status is state-at-creation, not a
// transition.
func NewStateMachine(initial Status) *StateMachine {
	return &StateMachine{current: initial}
}

// Current returns the current status.
func (m *StateMachine) Current() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CanTransitionTo checks the target against the normal-path table.
func (m *StateMachine) CanTransitionTo(target Status) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canTransitionLocked(target)
}

func (m *StateMachine) canTransitionLocked(target Status) bool {
	allowed, ok := allowedTransitions[m.current]
	return ok && allowed.Contains(target)
}

// Transition moves the machine to target, appending a history record on
// success. A transition to the current status is an idempotent no-op.
//
// With adminOverride set, the target must be approved or rejected and
// ctx.Role must be "admin"; the target check runs first so a bad target
// is rejected even for admins. Failed transitions leave state and
// history untouched.
func (m *StateMachine) Transition(target Status, ctx TransitionContext, adminOverride bool) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == target {
		return m.current, nil
	}

	if adminOverride {
		if !adminOverrideTargets.Contains(target) {
			return m.current, &TransitionError{
				Code:    CodeAdminTargetRejected,
				From:    m.current,
				To:      target,
				Message: fmt.Sprintf("admin override to %s not permitted; allowed targets: %s, %s", target, StatusApproved, StatusRejected),
			}
		}
		if ctx.Role != RoleAdmin {
			return m.current, &AdminOverrideError{Actor: ctx.Actor, Role: ctx.Role}
		}
	} else if !m.canTransitionLocked(target) {
		return m.current, &TransitionError{
			Code:    CodeIllegalTransition,
			From:    m.current,
			To:      target,
			Message: fmt.Sprintf("illegal transition %s -> %s", m.current, target),
		}
	}

	from := m.current
	m.current = target
	m.history = append(m.history, TransitionRecord{From: from, To: target, Context: ctx})
	return m.current, nil
}

// History returns an immutable snapshot of the transition records.
func (m *StateMachine) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TransitionRecord, len(m.history))
	copy(out, m.history)
	return out
}

// MachineDocument is the serializable form of a StateMachine, used by
// stores to persist and reload run state.
type MachineDocument struct {
	CurrentStatus string             `json:"current_status"`
	History       []TransitionRecord `json:"transition_history,omitempty"`
}

// Snapshot serializes the machine for persistence.
func (m *StateMachine) Snapshot() MachineDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc := MachineDocument{CurrentStatus: string(m.current)}
	if len(m.history) > 0 {
		doc.History = make([]TransitionRecord, len(m.history))
		copy(doc.History, m.history)
	}
	return doc
}

// RestoreMachine rebuilds a machine from a persisted document. Unknown
// status tags anywhere in the document yield ErrCorruptedState.
func RestoreMachine(doc MachineDocument) (*StateMachine, error) {
	current, err := ParseStatus(doc.CurrentStatus)
	if err != nil {
		return nil, err
	}
	history := make([]TransitionRecord, 0, len(doc.History))
	for _, rec := range doc.History {
		if _, err := ParseStatus(string(rec.From)); err != nil {
			return nil, err
		}
		if _, err := ParseStatus(string(rec.To)); err != nil {
			return nil, err
		}
		history = append(history, rec)
	}
	m := NewStateMachine(current)
	m.history = history
	return m, nil
}
