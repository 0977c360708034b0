package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) debugConfigHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capability_name":      s.cfg.CapabilityName,
		"confidence_threshold": s.cfg.ConfidenceThreshold,
		"manifest_path":        s.cfg.ManifestPath,
		"kill_switch":          s.killSwitch.Engaged(),
		"outputs_dir":          s.cfg.OutputsDir,
		"db_type":              s.cfg.DBType,
	})
}

func (s *Server) debugStatusHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	status, found, err := s.manager.GetStatus(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	statusStr := "NOT_FOUND"
	if found {
		statusStr = status.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"status": statusStr,
		"exists": found,
	})
}

// debugAuditHandler merges the persistent journal with the in-memory
// transition trail. 404 only when both are empty.
func (s *Server) debugAuditHandler(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")

	journalEntries, err := s.journal.Trail(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	transitions, err := s.manager.GetAuditTrail(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	combined := make([]any, 0, len(journalEntries)+len(transitions))
	for _, e := range journalEntries {
		combined = append(combined, e)
	}
	for _, tr := range transitions {
		combined = append(combined, tr)
	}
	if len(combined) == 0 {
		writeError(w, http.StatusNotFound, "no audit trail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":                runID,
		"governance_audit_path": s.journal.Path(runID),
		"audit_trail":           combined,
		"count":                 len(combined),
	})
}
