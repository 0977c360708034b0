package governance

import (
	"errors"
	"fmt"
)

// Machine-readable codes carried by TransitionError.
const (
	CodeIllegalTransition   = "GOV_ILLEGAL_TRANSITION"
	CodeAdminTargetRejected = "GOV_ADMIN_TARGET_REJECTED"
	CodeAdminRoleRequired   = "GOV_ADMIN_ROLE_REQUIRED"
)

var (
	// ErrRunNotFound is returned when an operation references a run-id
	// that was never processed.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidAction is returned for review actions outside
	// {approve, reject}.
	ErrInvalidAction = errors.New("invalid review action")

	// ErrCorruptedState is returned when persisted state cannot be
	// restored into a valid state machine.
	ErrCorruptedState = errors.New("corrupted run state")
)

// TransitionError is a structured error for rejected status
// transitions. Code is machine-readable; Message is for humans.
type TransitionError struct {
	Code    string `json:"code"`
	From    Status `json:"from"`
	To      Status `json:"to"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string { return e.Message }

// AdminOverrideError is returned when an admin override is attempted
// without the admin role.
type AdminOverrideError struct {
	Actor string `json:"actor"`
	Role  string `json:"role"`
}

func (e *AdminOverrideError) Error() string {
	return fmt.Sprintf("admin override requires role %q, got %q (actor %s)", RoleAdmin, e.Role, e.Actor)
}

// IsForbidden reports whether err should surface as an authorization
// failure rather than a bad request.
func IsForbidden(err error) bool {
	var aoe *AdminOverrideError
	if errors.As(err, &aoe) {
		return true
	}
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Code == CodeAdminTargetRejected || te.Code == CodeAdminRoleRequired
	}
	return false
}
