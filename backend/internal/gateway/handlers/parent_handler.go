package handlers

import (
	"net/http"

	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway/util"
)

// ParentHandler serves the parent dashboard of enrolled children.
type ParentHandler struct {
	Views *dashboard.Manager
}

// GetParentDashboard handles GET /dashboards/parent
// Query Params: student_id (repeatable; empty means every student)
func (h *ParentHandler) GetParentDashboard(w http.ResponseWriter, r *http.Request) {
	studentIDs := r.URL.Query()["student_id"]

	view := h.Views.Parent(r.Context(), studentIDs)
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// RefreshParentDashboard handles POST /dashboards/parent/refresh
// Query Params: student_id (repeatable)
func (h *ParentHandler) RefreshParentDashboard(w http.ResponseWriter, r *http.Request) {
	studentIDs := r.URL.Query()["student_id"]

	view := h.Views.Parent(r.Context(), studentIDs)
	view.Refresh(r.Context())
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}
