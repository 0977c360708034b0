package governance

import "sync"

// memoryRunState is the serialized form held by the in-memory store.
// Storing documents rather than live machines isolates callers from
// each other, matching the SQL store's semantics.
type memoryRunState struct {
	doc              MachineDocument
	hitlRequired     bool
	approvalRequired bool
	approvalProvided bool
}

// MemoryRunStore is a map-backed RunStore intended for tests and local
// development.
type MemoryRunStore struct {
	mu   sync.Mutex
	runs map[string]memoryRunState
}

// NewMemoryRunStore creates an empty in-memory store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]memoryRunState)}
}

func (s *MemoryRunStore) Save(runID string, state *RunState) error {
	stored := memoryRunState{
		doc:              state.Machine.Snapshot(),
		hitlRequired:     state.HITLRequired,
		approvalRequired: state.ApprovalRequired,
		approvalProvided: state.ApprovalProvided,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = stored
	return nil
}

func (s *MemoryRunStore) Load(runID string) (*RunState, error) {
	s.mu.Lock()
	stored, ok := s.runs[runID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	machine, err := RestoreMachine(stored.doc)
	if err != nil {
		return nil, err
	}
	return &RunState{
		Machine:          machine,
		HITLRequired:     stored.hitlRequired,
		ApprovalRequired: stored.approvalRequired,
		ApprovalProvided: stored.approvalProvided,
	}, nil
}

func (s *MemoryRunStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

func (s *MemoryRunStore) Exists(runID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[runID]
	return ok, nil
}
