package governance

import (
	"errors"
	"testing"
)

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name   string
		result ClassificationResult
		want   Status
	}{
		{"error wins over everything", ClassificationResult{ErrorOccurred: true, AdminOverride: true, Approval: true, HITLRequired: true}, StatusError},
		{"admin override with approval", ClassificationResult{AdminOverride: true, Approval: true}, StatusApproved},
		{"admin override without approval falls through", ClassificationResult{AdminOverride: true, HITLRequired: true}, StatusNeedsReview},
		{"hitl without approval", ClassificationResult{HITLRequired: true}, StatusNeedsReview},
		{"hitl with approval", ClassificationResult{HITLRequired: true, Approval: true}, StatusOK},
		{"clean run", ClassificationResult{Confidence: 0.95}, StatusOK},
		{"confidence does not participate", ClassificationResult{Confidence: 0.01}, StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveStatus(tt.result); got != tt.want {
				t.Errorf("ResolveStatus(%+v) = %s, want %s", tt.result, got, tt.want)
			}
		})
	}
}

func TestResolveStatus_Deterministic(t *testing.T) {
	result := ClassificationResult{Confidence: 0.4, HITLRequired: true}
	first := ResolveStatus(result)
	for i := 0; i < 100; i++ {
		if got := ResolveStatus(result); got != first {
			t.Fatalf("ResolveStatus not deterministic: got %s then %s", first, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		if err != nil {
			t.Errorf("ParseStatus(%q) unexpected error: %v", s, err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %s", s, got)
		}
	}

	for _, bad := range []string{"", "OK", "pending", "needs review"} {
		_, err := ParseStatus(bad)
		if err == nil {
			t.Errorf("ParseStatus(%q) expected error", bad)
		}
		if !errors.Is(err, ErrCorruptedState) {
			t.Errorf("ParseStatus(%q) error = %v, want ErrCorruptedState", bad, err)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[Status]bool{
		StatusOK:          false,
		StatusNeedsReview: false,
		StatusApproved:    true,
		StatusRejected:    true,
		StatusError:       true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}
