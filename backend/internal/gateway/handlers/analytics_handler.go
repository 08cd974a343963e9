package handlers

import (
	"net/http"

	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway/util"
)

// AnalyticsHandler serves the admin analytics dashboard.
type AnalyticsHandler struct {
	Views *dashboard.Manager
}

// GetAnalytics handles GET /dashboards/analytics
// Returns the current derived cohort snapshot: average, grade-band
// distribution, per-subject stats, and ranked lists.
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	view := h.Views.Analytics(r.Context())
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// RefreshAnalytics handles POST /dashboards/analytics/refresh
// The manual retry affordance: re-runs the fetch-and-aggregate cycle and
// returns the resulting state.
func (h *AnalyticsHandler) RefreshAnalytics(w http.ResponseWriter, r *http.Request) {
	view := h.Views.Analytics(r.Context())
	view.Refresh(r.Context())
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}
