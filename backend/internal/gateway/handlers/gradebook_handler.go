package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway/util"
	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// ScoreSubmitter is the slice of the upstream API client the mutation path
// needs.
type ScoreSubmitter interface {
	SubmitScore(ctx context.Context, sub shared.ScoreSubmission) error
}

// GradebookHandler serves the teacher gradebook dashboard and the score
// mutation endpoint.
type GradebookHandler struct {
	Views     *dashboard.Manager
	Submitter ScoreSubmitter
	Bus       *syncbus.Bus
}

// GetGradebook handles GET /dashboards/gradebook
// Query Params: teacher_id (required), subject (required)
func (h *GradebookHandler) GetGradebook(w http.ResponseWriter, r *http.Request) {
	// 1. Extract Query Parameters
	teacherID := r.URL.Query().Get("teacher_id")
	subject := r.URL.Query().Get("subject")
	if teacherID == "" || subject == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "teacher_id and subject are required")
		return
	}

	// 2. Resolve View and Respond
	view := h.Views.Gradebook(r.Context(), teacherID, subject)
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// RefreshGradebook handles POST /dashboards/gradebook/refresh
// Query Params: teacher_id (required), subject (required)
func (h *GradebookHandler) RefreshGradebook(w http.ResponseWriter, r *http.Request) {
	teacherID := r.URL.Query().Get("teacher_id")
	subject := r.URL.Query().Get("subject")
	if teacherID == "" || subject == "" {
		util.WriteJSONError(w, http.StatusBadRequest, "teacher_id and subject are required")
		return
	}

	view := h.Views.Gradebook(r.Context(), teacherID, subject)
	view.Refresh(r.Context())
	util.WriteJSON(w, http.StatusOK, view.Snapshot())
}

// SubmitScore handles POST /grades/score
// Saves one score+feedback upstream. Validation failures never reach the
// network; on success a ChangeNotification fans out on every dashboard
// channel so dependent views re-aggregate.
func (h *GradebookHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	// 1. Decode Body
	var sub shared.ScoreSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// 2. Submit Upstream (validated locally first)
	if err := h.Submitter.SubmitScore(r.Context(), sub); err != nil {
		util.HandleUpstreamError(w, err)
		return
	}

	// 3. Announce the Mutation
	h.Bus.Fanout(syncbus.FanoutChannels(), shared.ChangeNotification{
		StudentID:   sub.StudentID,
		TeacherID:   sub.TeacherID,
		SubjectName: sub.SubjectName,
		Action:      shared.ActionUpdate,
		OccurredAt:  time.Now().UTC(),
	})

	// 4. Respond
	response := map[string]interface{}{
		"success":   true,
		"record_id": sub.RecordID,
		"message":   "score saved",
	}

	util.WriteJSON(w, http.StatusOK, response)
}
