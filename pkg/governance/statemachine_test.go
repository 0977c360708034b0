package governance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(role string) TransitionContext {
	return TransitionContext{
		Actor:     "tester@example.com",
		Role:      role,
		AuthType:  "session",
		Timestamp: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
	}
}

func TestStateMachine_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"ok to needs_review", StatusOK, StatusNeedsReview, false},
		{"ok to error", StatusOK, StatusError, false},
		{"needs_review to approved", StatusNeedsReview, StatusApproved, false},
		{"needs_review to rejected", StatusNeedsReview, StatusRejected, false},

		{"ok to approved denied", StatusOK, StatusApproved, true},
		{"ok to rejected denied", StatusOK, StatusRejected, true},
		{"needs_review to ok denied", StatusNeedsReview, StatusOK, true},
		{"needs_review to error denied", StatusNeedsReview, StatusError, true},
		{"approved is terminal", StatusApproved, StatusNeedsReview, true},
		{"rejected is terminal", StatusRejected, StatusNeedsReview, true},
		{"error is terminal", StatusError, StatusOK, true},
		{"no path back to ok", StatusNeedsReview, StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewStateMachine(tt.from)
			got, err := m.Transition(tt.to, testContext("reviewer"), false)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Transition(%s -> %s) expected error", tt.from, tt.to)
				}
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("expected *TransitionError, got %T", err)
				}
				if te.Code != CodeIllegalTransition {
					t.Errorf("code = %s, want %s", te.Code, CodeIllegalTransition)
				}
				if m.Current() != tt.from {
					t.Errorf("failed transition mutated state: %s", m.Current())
				}
				if len(m.History()) != 0 {
					t.Errorf("failed transition recorded history")
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition(%s -> %s) unexpected error: %v", tt.from, tt.to, err)
			}
			if got != tt.to {
				t.Errorf("Transition returned %s, want %s", got, tt.to)
			}
			history := m.History()
			if len(history) != 1 || history[0].From != tt.from || history[0].To != tt.to {
				t.Errorf("history = %+v", history)
			}
		})
	}
}

func TestStateMachine_SameStatusNoOp(t *testing.T) {
	m := NewStateMachine(StatusNeedsReview)

	got, err := m.Transition(StatusNeedsReview, testContext("reviewer"), false)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, got)
	assert.Empty(t, m.History(), "no-op must not grow history")

	// Also a no-op under admin override, even with a bad role.
	got, err = m.Transition(StatusNeedsReview, testContext("viewer"), true)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsReview, got)
	assert.Empty(t, m.History())
}

func TestStateMachine_AdminOverride(t *testing.T) {
	t.Run("admin may force approved from ok", func(t *testing.T) {
		m := NewStateMachine(StatusOK)
		got, err := m.Transition(StatusApproved, testContext(RoleAdmin), true)
		require.NoError(t, err)
		assert.Equal(t, StatusApproved, got)
		history := m.History()
		require.Len(t, history, 1)
		assert.Equal(t, RoleAdmin, history[0].Context.Role)
	})

	t.Run("admin may force rejected from needs_review", func(t *testing.T) {
		m := NewStateMachine(StatusNeedsReview)
		got, err := m.Transition(StatusRejected, testContext(RoleAdmin), true)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, got)
	})

	t.Run("non-admin role is rejected", func(t *testing.T) {
		m := NewStateMachine(StatusNeedsReview)
		_, err := m.Transition(StatusApproved, testContext("reviewer"), true)
		var aoe *AdminOverrideError
		require.ErrorAs(t, err, &aoe)
		assert.Equal(t, "reviewer", aoe.Role)
		assert.Equal(t, StatusNeedsReview, m.Current())
	})

	t.Run("bad target rejected before role check", func(t *testing.T) {
		m := NewStateMachine(StatusOK)
		_, err := m.Transition(StatusError, testContext(RoleAdmin), true)
		var te *TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, CodeAdminTargetRejected, te.Code)
	})

	t.Run("override between terminal targets", func(t *testing.T) {
		// approved -> rejected is legal only through admin override.
		m := NewStateMachine(StatusApproved)
		got, err := m.Transition(StatusRejected, testContext(RoleAdmin), true)
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, got)
	})
}

func TestStateMachine_CanTransitionTo(t *testing.T) {
	m := NewStateMachine(StatusOK)
	assert.True(t, m.CanTransitionTo(StatusNeedsReview))
	assert.True(t, m.CanTransitionTo(StatusError))
	assert.False(t, m.CanTransitionTo(StatusApproved))
	assert.False(t, m.CanTransitionTo(StatusOK))
}

func TestStateMachine_SnapshotRoundTrip(t *testing.T) {
	m := NewStateMachine(StatusOK)
	ctx := testContext("reviewer")
	ctx.Reason = "needs another pair of eyes"
	ctx.Metadata = map[string]any{"confidence": 0.42, "source": "unit-test"}

	_, err := m.Transition(StatusNeedsReview, ctx, false)
	require.NoError(t, err)
	_, err = m.Transition(StatusApproved, testContext("reviewer"), false)
	require.NoError(t, err)

	restored, err := RestoreMachine(m.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, m.Current(), restored.Current())
	require.Equal(t, m.History(), restored.History())

	// Round-trip again to confirm stability.
	again, err := RestoreMachine(restored.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, restored.Snapshot(), again.Snapshot())
}

func TestRestoreMachine_Corrupted(t *testing.T) {
	tests := []struct {
		name string
		doc  MachineDocument
	}{
		{"unknown current", MachineDocument{CurrentStatus: "limbo"}},
		{"unknown from in history", MachineDocument{
			CurrentStatus: "approved",
			History:       []TransitionRecord{{From: "limbo", To: StatusApproved}},
		}},
		{"unknown to in history", MachineDocument{
			CurrentStatus: "approved",
			History:       []TransitionRecord{{From: StatusNeedsReview, To: "limbo"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RestoreMachine(tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptedState)
		})
	}
}

func TestStateMachine_ConcurrentTransitions(t *testing.T) {
	m := NewStateMachine(StatusNeedsReview)

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			target := StatusApproved
			if i%2 == 1 {
				target = StatusRejected
			}
			_, errs[i] = m.Transition(target, testContext("reviewer"), false)
		}(i)
	}
	wg.Wait()

	// Exactly one goroutine wins the first real transition; the others
	// either hit the idempotent no-op (same target) or an illegal
	// transition (terminal source). Either way the history holds a
	// single record and the machine is terminal.
	require.Len(t, m.History(), 1)
	assert.True(t, m.Current().IsTerminal())

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.GreaterOrEqual(t, succeeded, 1)
}
