package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/novapact/gcu/pkg/governance"
)

// ReviewRequest is the /review/{run_id} request body.
type ReviewRequest struct {
	Action   string `json:"action"`
	Actor    string `json:"actor"`
	Role     string `json:"role"`
	AuthType string `json:"auth_type"`
	Reason   string `json:"reason,omitempty"`
}

// OverrideRequest is the /admin/override/{run_id} request body.
type OverrideRequest struct {
	TargetStatus string `json:"target_status"`
	Actor        string `json:"actor"`
	Role         string `json:"role"`
	AuthType     string `json:"auth_type"`
	Reason       string `json:"reason"`
}

func (s *Server) reviewHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Action != governance.ActionApprove && req.Action != governance.ActionReject {
		writeError(w, http.StatusBadRequest, "invalid review action")
		return
	}
	actor, role, authType := s.resolveIdentity(r, req.Actor, req.Role, req.AuthType)

	newStatus, err := s.manager.ManualReviewAction(runID, req.Action, governance.TransitionContext{
		Actor:    actor,
		Role:     role,
		AuthType: authType,
		Reason:   req.Reason,
	})
	if err != nil {
		s.writeGovernanceError(w, err, http.StatusBadRequest)
		return
	}

	approvalNow := req.Action == governance.ActionApprove
	if err := s.journal.Append(runID, governance.EventReviewAction, map[string]any{
		"action":            req.Action,
		"new_status":        newStatus.String(),
		"actor":             actor,
		"role":              role,
		"auth_type":         authType,
		"reason":            req.Reason,
		"approval_provided": approvalNow,
	}); err != nil {
		s.logger.Error("journal write failed", "run_id", runID, "error", err)
	}

	s.metrics.govReviewActionTotal.WithLabelValues(req.Action).Inc()
	s.metrics.govOutcomeTotal.WithLabelValues(newStatus.String()).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"status": newStatus.String(),
		"action": req.Action,
		"actor":  actor,
	})
}

func (s *Server) overrideHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	target, err := governance.ParseStatus(req.TargetStatus)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_status")
		return
	}
	actor, role, authType := s.resolveIdentity(r, req.Actor, req.Role, req.AuthType)

	newStatus, err := s.manager.AdminOverride(runID, target, governance.TransitionContext{
		Actor:    actor,
		Role:     role,
		AuthType: authType,
		Reason:   req.Reason,
	})
	if err != nil {
		s.writeGovernanceError(w, err, http.StatusForbidden)
		return
	}

	if err := s.journal.Append(runID, governance.EventAdminOverride, map[string]any{
		"target_status": req.TargetStatus,
		"new_status":    newStatus.String(),
		"actor":         actor,
		"role":          role,
		"auth_type":     authType,
		"reason":        req.Reason,
	}); err != nil {
		s.logger.Error("journal write failed", "run_id", runID, "error", err)
	}

	s.metrics.govAdminOverrideTotal.WithLabelValues(req.TargetStatus).Inc()
	s.metrics.govOutcomeTotal.WithLabelValues(newStatus.String()).Inc()

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":         runID,
		"status":         newStatus.String(),
		"actor":          actor,
		"role":           role,
		"admin_override": true,
	})
}

// writeGovernanceError maps manager errors onto HTTP statuses. Rejected
// transitions map to rejectedStatus: 400 on the review path, 403 on the
// override path.
func (s *Server) writeGovernanceError(w http.ResponseWriter, err error, rejectedStatus int) {
	switch {
	case errors.Is(err, governance.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, governance.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, err.Error())
	case governance.IsForbidden(err):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		var te *governance.TransitionError
		if errors.As(err, &te) {
			writeJSON(w, rejectedStatus, te)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
