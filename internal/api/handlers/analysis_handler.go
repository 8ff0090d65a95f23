package handlers

import (
	"net/http"
	"strings"

	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/services"
)

type AnalysisHandler struct {
	svc services.AnalysisService
}

func NewAnalysisHandler(svc services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

func (h *AnalysisHandler) Similarity(w http.ResponseWriter, r *http.Request) {
	email, ok := ownEmailParam(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(email) == "" {
		writeErrorStr(w, http.StatusBadRequest, "faculty email is required")
		return
	}
	report, err := h.svc.Analyze(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: report})
}

func (h *AnalysisHandler) Stats(w http.ResponseWriter, r *http.Request) {
	email, ok := ownEmailParam(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(email) == "" {
		writeErrorStr(w, http.StatusBadRequest, "faculty email is required")
		return
	}
	st, err := h.svc.Stats(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: st})
}
