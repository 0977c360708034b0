// Package governance implements the decision core of the GCU control
// plane: the status resolver, the per-run status state machine, run
// persistence, and the per-run governance audit journal.
//
// The governed status produced here is authoritative; callers must not
// surface raw classifier output as an outcome.
package governance

import "fmt"

// Status is the canonical governed outcome of a run. The wire
// representation is the lowercase tag.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNeedsReview Status = "needs_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusError       Status = "error"
)

// AllStatuses lists every valid status tag.
var AllStatuses = []Status{
	StatusOK,
	StatusNeedsReview,
	StatusApproved,
	StatusRejected,
	StatusError,
}

// ParseStatus validates a wire tag. Unknown tags are rejected so that
// corrupted persistence is caught on load rather than propagated.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOK, StatusNeedsReview, StatusApproved, StatusRejected, StatusError:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrCorruptedState, s)
}

// IsTerminal reports whether the status admits no further normal-path
// transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusError:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ClassificationResult is the input to the status resolver. It carries
// the governance-relevant facts about one classifier invocation;
// Confidence is recorded for audit but does not participate in
// resolution (HITLRequired is the single channel).
type ClassificationResult struct {
	Confidence    float64 `json:"confidence"`
	HITLRequired  bool    `json:"hitl_required"`
	Approval      bool    `json:"approval"`
	AdminOverride bool    `json:"admin_override"`
	ErrorOccurred bool    `json:"error_occurred"`
}

// ResolveStatus derives the initial status for a run. Pure and
// deterministic: first matching rule wins.
//
//  1. error_occurred            => error
//  2. admin_override && approval => approved
//  3. hitl_required && !approval => needs_review
//  4. otherwise                  => ok
func ResolveStatus(result ClassificationResult) Status {
	if result.ErrorOccurred {
		return StatusError
	}
	if result.AdminOverride && result.Approval {
		return StatusApproved
	}
	if result.HITLRequired && !result.Approval {
		return StatusNeedsReview
	}
	return StatusOK
}
