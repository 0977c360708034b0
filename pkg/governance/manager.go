package governance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ReviewAction names accepted by ManualReviewAction.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Manager orchestrates the resolver, state machine, and store for all
// runs. It is the single writer of run state; construct one at startup
// and share it.
type Manager struct {
	store             RunStore
	logger            *slog.Logger
	preapprovedCreate bool

	mu       sync.Mutex
	runLocks map[string]*sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithPreapprovedCreate allows a classification carrying
// admin_override+approval to create a run directly in approved. Off by
// default: the state machine only permits admin overrides through the
// sanctioned transition path, so out of the box the resolver's
// admin-override rule is inert at creation time.
func WithPreapprovedCreate(enabled bool) ManagerOption {
	return func(m *Manager) { m.preapprovedCreate = enabled }
}

// NewManager creates a Manager on the given store.
func NewManager(store RunStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:    store,
		logger:   slog.Default(),
		runLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lockRun serializes mutations per run-id. Every mutation holds the
// run's lock across its load, transition, and save so two concurrent
// callers cannot both act on the same loaded state. Locks for distinct
// runs do not contend.
func (m *Manager) lockRun(runID string) func() {
	m.mu.Lock()
	lock, ok := m.runLocks[runID]
	if !ok {
		lock = &sync.Mutex{}
		m.runLocks[runID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// ProcessClassification creates the run for runID at its resolved
// initial status. Idempotent: a run that already exists is returned
// unchanged with no new history entry. Creation itself produces no
// transition record; history starts empty.
func (m *Manager) ProcessClassification(runID string, result ClassificationResult, actor, role, authType string) (Status, error) {
	defer m.lockRun(runID)()

	existing, err := m.store.Load(runID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		m.logger.Warn("duplicate classification ignored",
			"run_id", runID,
			"status", existing.Machine.Current().String())
		return existing.Machine.Current(), nil
	}

	if !m.preapprovedCreate {
		result.AdminOverride = false
	}
	initial := ResolveStatus(result)

	state := DefaultRunState(NewStateMachine(initial))
	state.HITLRequired = result.HITLRequired
	if err := m.store.Save(runID, state); err != nil {
		return "", err
	}

	m.logger.Info("classification processed",
		"run_id", runID,
		"initial_status", initial.String(),
		"actor", actor,
		"role", role,
		"auth_type", authType,
		"confidence", result.Confidence,
		"hitl_required", result.HITLRequired)

	return initial, nil
}

// ManualReviewAction applies a human review decision. The action must
// be "approve" or "reject"; the transition follows the normal path, so
// only runs in needs_review can move. State is persisted only on
// success, with approval_provided recomputed from the action.
func (m *Manager) ManualReviewAction(runID, action string, ctx TransitionContext) (Status, error) {
	var target Status
	switch action {
	case ActionApprove:
		target = StatusApproved
	case ActionReject:
		target = StatusRejected
	default:
		return "", fmt.Errorf("%w: %q (allowed: approve, reject)", ErrInvalidAction, action)
	}

	defer m.lockRun(runID)()

	state, err := m.store.Load(runID)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if ctx.Reason == "" {
		ctx.Reason = "Manual " + action
	}
	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now().UTC()
	}
	newStatus, err := state.Machine.Transition(target, ctx, false)
	if err != nil {
		m.logger.Error("review action rejected",
			"run_id", runID,
			"actor", ctx.Actor,
			"action", action,
			"current_status", state.Machine.Current().String(),
			"error", err)
		return "", err
	}

	state.ApprovalProvided = action == ActionApprove
	if err := m.store.Save(runID, state); err != nil {
		return "", err
	}
	return newStatus, nil
}

// AdminOverride forces a run to approved or rejected. The role is
// checked here and again inside the state machine; both must see
// "admin". Summary flags other than status are left as persisted.
func (m *Manager) AdminOverride(runID string, target Status, ctx TransitionContext) (Status, error) {
	defer m.lockRun(runID)()

	state, err := m.store.Load(runID)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	if ctx.Role != RoleAdmin {
		return "", &AdminOverrideError{Actor: ctx.Actor, Role: ctx.Role}
	}

	if ctx.Timestamp.IsZero() {
		ctx.Timestamp = time.Now().UTC()
	}
	newStatus, err := state.Machine.Transition(target, ctx, true)
	if err != nil {
		m.logger.Error("admin override rejected",
			"run_id", runID,
			"actor", ctx.Actor,
			"role", ctx.Role,
			"target_status", target.String(),
			"error", err)
		return "", err
	}

	m.logger.Warn("admin override applied",
		"run_id", runID,
		"actor", ctx.Actor,
		"target_status", target.String())

	if err := m.store.Save(runID, state); err != nil {
		return "", err
	}
	return newStatus, nil
}

// GetStatus returns the current status for a run, with found=false for
// unknown runs.
func (m *Manager) GetStatus(runID string) (Status, bool, error) {
	state, err := m.store.Load(runID)
	if err != nil {
		return "", false, err
	}
	if state == nil {
		return "", false, nil
	}
	return state.Machine.Current(), true, nil
}

// GetState returns the full persisted state for a run, or nil when
// unknown.
func (m *Manager) GetState(runID string) (*RunState, error) {
	return m.store.Load(runID)
}

// GetAuditTrail returns the in-memory transition history for a run, or
// nil when the run is unknown.
func (m *Manager) GetAuditTrail(runID string) ([]TransitionRecord, error) {
	state, err := m.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}
	return state.Machine.History(), nil
}
