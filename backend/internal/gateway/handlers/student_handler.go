package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway/util"
)

// StudentHandler serves the per-student gradebook dashboard.
type StudentHandler struct {
	Views *dashboard.Manager
}

// GetStudentGradebook handles GET /dashboards/student/{student_id}
func (h *StudentHandler) GetStudentGradebook(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")
	if studentID == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	view := h.Views.StudentGradebook(r.Context(), studentID)
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// RefreshStudentGradebook handles POST /dashboards/student/{student_id}/refresh
func (h *StudentHandler) RefreshStudentGradebook(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "student_id")
	if studentID == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	view := h.Views.StudentGradebook(r.Context(), studentID)
	view.Refresh(r.Context())
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}
