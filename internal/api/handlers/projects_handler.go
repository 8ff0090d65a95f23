package handlers

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/projectaudit/engine/internal/api/middleware"
	"github.com/projectaudit/engine/internal/api/types"
	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/services"
)

type ProjectsHandler struct {
	svc      services.ProjectService
	validate *validator.Validate
}

func NewProjectsHandler(svc services.ProjectService, v *validator.Validate) *ProjectsHandler {
	return &ProjectsHandler{svc: svc, validate: v}
}

func (h *ProjectsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitProjectRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	if caller := middleware.GetUserEmail(r.Context()); !strings.EqualFold(strings.TrimSpace(req.SubmittedByEmail), caller) {
		writeErrorStr(w, http.StatusForbidden, "projects can only be submitted for your own account")
		return
	}

	res, err := h.svc.Submit(r.Context(), &services.SubmitProjectInput{
		Title:                req.Title,
		Domain:               req.Domain,
		Description:          req.Description,
		AssignedFacultyEmail: req.AssignedFacultyEmail,
		SubmittedByEmail:     req.SubmittedByEmail,
		SubmittedByName:      req.SubmittedByName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, types.APIResponse{
		Success: true,
		Message: "Project submitted successfully!",
		Data: types.SubmitProjectData{
			Project: types.ProjectSummary{
				ID:                   res.Project.ID.String(),
				Title:                res.Project.Title,
				SimilarityPercentage: res.SimilarityPercentage,
				SimilarityFlag:       string(res.SimilarityFlag),
			},
			SimilarityWarning: res.Warning,
		},
	})
}

func (h *ProjectsHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	var req types.ResubmitProjectRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	out, err := h.svc.Resubmit(r.Context(), id, &services.ResubmitProjectInput{
		Title:       req.Title,
		Description: req.Description,
		CallerEmail: middleware.GetUserEmail(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Message: "Project updated and resubmitted successfully.",
		Data:    out,
	})
}

func (h *ProjectsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	var req types.ReviewProjectRequest
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}

	err := h.svc.Review(r.Context(), id, &services.ReviewProjectInput{
		Status:        req.Status,
		Comment:       req.FacultyComment,
		ReviewerEmail: middleware.GetUserEmail(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Message: "Project status updated."})
}

func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := projectIDParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id, middleware.GetUserEmail(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Message: "Project deleted successfully."})
}

func (h *ProjectsHandler) ListStudent(w http.ResponseWriter, r *http.Request) {
	email, ok := ownEmailParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListByStudent(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeProjects(w, items)
}

func (h *ProjectsHandler) ListFaculty(w http.ResponseWriter, r *http.Request) {
	email, ok := ownEmailParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListByFaculty(r.Context(), email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeProjects(w, items)
}

func writeProjects(w http.ResponseWriter, items []models.Project) {
	if items == nil {
		items = []models.Project{}
	}
	resp := types.APIResponse{Success: true, Data: items}
	if len(items) > 0 {
		resp.Meta = &types.Meta{Total: int64(len(items))}
	}
	writeJSON(w, http.StatusOK, resp)
}
