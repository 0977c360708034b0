package governance

// RunState is the persisted unit for one run: the state machine plus
// the flat summary flags kept alongside it for query efficiency. The
// flags must stay consistent with the machine's history; the Manager is
// the only writer.
type RunState struct {
	Machine          *StateMachine
	HITLRequired     bool
	ApprovalRequired bool
	ApprovalProvided bool
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (s *RunState) Clone() (*RunState, error) {
	machine, err := RestoreMachine(s.Machine.Snapshot())
	if err != nil {
		return nil, err
	}
	return &RunState{
		Machine:          machine,
		HITLRequired:     s.HITLRequired,
		ApprovalRequired: s.ApprovalRequired,
		ApprovalProvided: s.ApprovalProvided,
	}, nil
}

// DefaultRunState returns the conservative summary flags a run starts
// from: human review assumed required, approval required, none
// provided. Creation overwrites HITLRequired from the classification.
func DefaultRunState(machine *StateMachine) *RunState {
	return &RunState{
		Machine:          machine,
		HITLRequired:     true,
		ApprovalRequired: true,
		ApprovalProvided: false,
	}
}

// RunStore persists run state keyed by run-id. Implementations must be
// safe for concurrent use and linearizable per run-id: a Load that
// begins after a Save completes observes the saved state. Saves for
// distinct run-ids must not block each other beyond store-level
// serialization.
type RunStore interface {
	// Save upserts the state for a run.
	Save(runID string, state *RunState) error

	// Load returns the state for a run, or nil when the run is unknown.
	Load(runID string) (*RunState, error)

	// Delete removes a run. Deleting an unknown run is not an error.
	Delete(runID string) error

	// Exists reports whether the run has been persisted.
	Exists(runID string) (bool, error)
}
