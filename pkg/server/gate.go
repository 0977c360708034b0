package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/novapact/gcu/pkg/governance"
	"github.com/novapact/gcu/pkg/triage"
)

// RunRequest is the /run request body.
type RunRequest struct {
	Capability string         `json:"capability"`
	Payload    map[string]any `json:"payload"`
	Actor      string         `json:"actor"`
	Role       string         `json:"role"`
	AuthType   string         `json:"auth_type"`
}

// RunResponse is the classifier result merged with the governance
// decision.
type RunResponse struct {
	RunID           string               `json:"run_id"`
	Status          string               `json:"status"`
	Classification  string               `json:"classification"`
	Confidence      float64              `json:"confidence"`
	NeedsHuman      bool                 `json:"needs_human"`
	NeedsReview     bool                 `json:"needs_review"`
	Explainability  []triage.Explanation `json:"explainability"`
	Meta            map[string]any       `json:"meta"`
	GovernanceAudit string               `json:"governance_audit"`
}

// runHandler is the governance-first execution endpoint. Governance
// decides the final status; the classifier only proposes.
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Actor == "" {
		req.Actor = "system"
	}
	if req.Role == "" {
		req.Role = "auto"
	}
	if req.AuthType == "" {
		req.AuthType = "api_key"
	}
	actor, role, authType := s.resolveIdentity(r, req.Actor, req.Role, req.AuthType)

	capability := s.cfg.CapabilityName
	threshold := s.cfg.ConfidenceThreshold
	manifestPath := s.cfg.ManifestPath

	if req.Capability != capability {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid capability, expected %q", capability))
		return
	}

	if _, err := os.Stat(manifestPath); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("manifest not found: %s", manifestPath))
		return
	}

	bundle, err := triage.LoadBundle(manifestPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("manifest load failed: %v", err))
		return
	}

	t0 := time.Now()
	result, err := s.classify(bundle).Classify(r.Context(), req.Payload)
	s.metrics.runPipelineDuration.Observe(time.Since(t0).Seconds())
	if err != nil {
		s.logger.Error("capability execution failed", "capability", capability, "error", err)
		s.metrics.govOutcomeTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, triage.ErrorResult("", err))
		return
	}

	// Short-circuit anything the gate cannot govern: only ok and
	// needs_review proposals enter the status machine.
	if result.Status != triage.StatusOK && result.Status != triage.StatusNeedsReview {
		s.metrics.govOutcomeTotal.WithLabelValues(result.Status).Inc()
		writeJSON(w, http.StatusOK, result)
		return
	}

	runID := result.RunID

	if err := s.journal.Append(runID, governance.EventConfig, map[string]any{
		"capability_expected": capability,
		"threshold":           threshold,
		"manifest_path":       manifestPath,
	}); err != nil {
		s.logger.Error("journal write failed", "run_id", runID, "error", err)
	}

	g0 := time.Now()

	hitl := result.Confidence < threshold
	if s.killSwitch.Engaged() {
		hitl = true
	}
	// No auto-approval in v1.
	approvalProvided := false

	status, err := s.manager.ProcessClassification(runID, governance.ClassificationResult{
		Confidence:   result.Confidence,
		HITLRequired: hitl,
		Approval:     approvalProvided,
	}, actor, role, authType)
	if err != nil {
		s.logger.Error("classification processing failed", "run_id", runID, "error", err)
		s.metrics.govOutcomeTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("governance failed: %v", err))
		return
	}

	if err := s.journal.Append(runID, governance.EventStatusComputed, map[string]any{
		"status":            status.String(),
		"confidence":        result.Confidence,
		"hitl_required":     hitl,
		"approval_provided": approvalProvided,
		"actor":             actor,
		"role":              role,
		"auth_type":         authType,
	}); err != nil {
		s.logger.Error("journal write failed", "run_id", runID, "error", err)
	}

	// Hard rule: a run needing a human with no approval on file can
	// never leave the gate as ok.
	if hitl && !approvalProvided {
		status = governance.StatusNeedsReview
		if err := s.journal.Append(runID, governance.EventHardRuleApplied, map[string]any{
			"rule":   "hitl_required_and_no_approval => needs_review",
			"status": governance.StatusNeedsReview.String(),
		}); err != nil {
			s.logger.Error("journal write failed", "run_id", runID, "error", err)
		}
	}

	if err := s.journal.Append(runID, governance.EventDBPersisted, map[string]any{
		"status":            status.String(),
		"hitl_required":     hitl,
		"approval_required": true,
		"approval_provided": approvalProvided,
	}); err != nil {
		s.logger.Error("journal write failed", "run_id", runID, "error", err)
	}

	s.metrics.runGovernanceDuration.Observe(time.Since(g0).Seconds())
	s.metrics.govOutcomeTotal.WithLabelValues(status.String()).Inc()
	s.metrics.govHITLRequiredTotal.WithLabelValues(strconv.FormatBool(hitl)).Inc()

	s.logger.Info("run governed",
		"run_id", runID,
		"status", status.String(),
		"confidence", result.Confidence,
		"hitl_required", hitl)

	writeJSON(w, http.StatusOK, RunResponse{
		RunID:           runID,
		Status:          status.String(),
		Classification:  result.Classification,
		Confidence:      result.Confidence,
		NeedsHuman:      result.NeedsHuman,
		NeedsReview:     status == governance.StatusNeedsReview,
		Explainability:  result.Explainability,
		Meta:            result.Meta,
		GovernanceAudit: s.journal.Path(runID),
	})
}
