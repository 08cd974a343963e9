// stubapi is a local stand-in for the school platform REST API. It serves a
// small fixed roster of students, subjects, and grade records so the
// dashboard service can run end-to-end in development, and emits a change
// notification whenever a score is patched.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gradepulse/backend/internal/shared"
)

type store struct {
	mu      sync.Mutex
	records []shared.GradeRecord
	changes []shared.ChangeNotification
}

func score(v float64) *float64 { return &v }

func seedRecords() []shared.GradeRecord {
	now := time.Now().UTC()
	return []shared.GradeRecord{
		{ID: "R1", StudentID: "S1", SubjectName: "Math", Score: score(90), MaxScore: 100, AssessmentKind: shared.KindAssignment, RecordedAt: now},
		{ID: "R2", StudentID: "S1", SubjectName: "Math", Score: score(70), MaxScore: 100, AssessmentKind: shared.KindFinalExam, RecordedAt: now},
		{ID: "R3", StudentID: "S1", SubjectName: "English", Score: score(84), MaxScore: 100, AssessmentKind: shared.KindQuiz, RecordedAt: now},
		{ID: "R4", StudentID: "S2", SubjectName: "Math", Score: score(58), MaxScore: 100, AssessmentKind: shared.KindMidExam, RecordedAt: now},
		{ID: "R5", StudentID: "S2", SubjectName: "English", MaxScore: 100, AssessmentKind: shared.KindAssignment, RecordedAt: now}, // not yet graded
		{ID: "R6", StudentID: "S3", SubjectName: "Science", Score: score(95), MaxScore: 100, AssessmentKind: shared.KindFinalExam, RecordedAt: now},
	}
}

func analyticsPayload() map[string]interface{} {
	return map[string]interface{}{
		"families": []interface{}{
			map[string]interface{}{
				"students": []interface{}{
					map[string]interface{}{
						"student_id":   "S1",
						"student_name": "Amina Yusuf",
						"subjects": []interface{}{
							map[string]interface{}{
								"id": "E1", "subject": "Math", "grade_level": "10",
								"teacher":       map[string]interface{}{"id": "T1", "name": "Mr. Okello"},
								"enrolled_date": "2026-01-12", "trend": "up", "trend_value": 2.5,
							},
							map[string]interface{}{
								"id": "E2", "subject": "English", "grade_level": "10", "stream": "A",
								"teacher":       map[string]interface{}{"id": "T2", "name": "Ms. Achieng"},
								"enrolled_date": "2026-01-12",
							},
						},
					},
					map[string]interface{}{
						"student_id":   "S2",
						"student_name": "Brian Odhiambo",
						"subjects": []interface{}{
							map[string]interface{}{
								"id": "E3", "subject": "Math", "grade_level": "10",
								"teacher":       map[string]interface{}{"id": "T1", "name": "Mr. Okello"},
								"enrolled_date": "2026-01-13", "trend": "down",
							},
						},
					},
				},
			},
		},
	}
}

func main() {
	st := &store{records: seedRecords()}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/api/grades/records", func(w http.ResponseWriter, req *http.Request) {
		studentID := req.URL.Query().Get("student_id")
		subject := req.URL.Query().Get("subject")

		st.mu.Lock()
		var out []shared.GradeRecord
		for _, rec := range st.records {
			if studentID != "" && rec.StudentID != studentID {
				continue
			}
			if subject != "" && rec.SubjectName != subject {
				continue
			}
			out = append(out, rec)
		}
		st.mu.Unlock()

		// Envelope form; the client must also accept a bare array.
		writeJSON(w, map[string]interface{}{"data": out})
	})

	r.Get("/api/enrollments/analytics", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, analyticsPayload())
	})

	r.Get("/api/grades/changes", func(w http.ResponseWriter, _ *http.Request) {
		st.mu.Lock()
		changes := st.changes
		st.changes = nil
		st.mu.Unlock()

		if changes == nil {
			changes = []shared.ChangeNotification{}
		}
		writeJSON(w, changes)
	})

	r.Patch("/api/grades/records/{record_id}", func(w http.ResponseWriter, req *http.Request) {
		recordID := chi.URLParam(req, "record_id")

		var sub shared.ScoreSubmission
		if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}

		st.mu.Lock()
		updated := false
		for i := range st.records {
			if st.records[i].ID == recordID {
				s := sub.Score
				st.records[i].Score = &s
				st.records[i].Feedback = sub.Feedback
				updated = true
				break
			}
		}
		if updated {
			st.changes = append(st.changes, shared.ChangeNotification{
				StudentID:   sub.StudentID,
				TeacherID:   sub.TeacherID,
				SubjectName: sub.SubjectName,
				Action:      shared.ActionUpdate,
				OccurredAt:  time.Now().UTC(),
			})
		}
		st.mu.Unlock()

		if !updated {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]interface{}{"success": true})
	})

	port := shared.GetEnv("STUB_API_PORT", "9090")
	log.Printf("INFO: stub upstream API listening on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("FATAL: stub API server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}
