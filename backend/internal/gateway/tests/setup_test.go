package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"gradepulse/backend/internal/api"
	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway"
	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// gatewayTestEnv wires a stub upstream API, a real client, the view manager,
// and the real router together for route-level tests.
type gatewayTestEnv struct {
	Router   *chi.Mux
	Bus      *syncbus.Bus
	Upstream *stubUpstream
}

// stubUpstream fakes the school platform REST API in memory.
type stubUpstream struct {
	mu      sync.Mutex
	records []shared.GradeRecord
	patches []shared.ScoreSubmission
}

func score(v float64) *float64 { return &v }

func (s *stubUpstream) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/grades/records", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		studentID := r.URL.Query().Get("student_id")
		subject := r.URL.Query().Get("subject")
		var out []shared.GradeRecord
		for _, rec := range s.records {
			if studentID != "" && rec.StudentID != studentID {
				continue
			}
			if subject != "" && rec.SubjectName != subject {
				continue
			}
			out = append(out, rec)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": out})
	})

	mux.HandleFunc("GET /api/grades/changes", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	mux.HandleFunc("GET /api/enrollments/analytics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"families": [{
				"family_name": "Okafor",
				"students": [{
					"student_id": "s1",
					"student_name": "Amina Okafor",
					"subjects": [{
						"id": "e1",
						"subject": "Math",
						"grade_level": "Grade 8",
						"teacher": {"id": "t1", "name": "Mr. Cruz"}
					}]
				}]
			}]
		}`))
	})

	mux.HandleFunc("PATCH /api/grades/records/", func(w http.ResponseWriter, r *http.Request) {
		var sub shared.ScoreSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.patches = append(s.patches, sub)
		s.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func (s *stubUpstream) patchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patches)
}

func setupGatewayTestEnv(t *testing.T) *gatewayTestEnv {
	t.Helper()

	upstream := &stubUpstream{
		records: []shared.GradeRecord{
			{ID: "r1", StudentID: "s1", SubjectName: "Math", Score: score(80), MaxScore: 100, AssessmentKind: shared.KindAssignment},
			{ID: "r2", StudentID: "s1", SubjectName: "Math", Score: score(90), MaxScore: 100, AssessmentKind: shared.KindFinalExam},
			{ID: "r3", StudentID: "s2", SubjectName: "Math", Score: score(72), MaxScore: 100, AssessmentKind: shared.KindAssignment},
		},
	}
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)

	client := api.NewClient(shared.UpstreamConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
	}, nil)

	bus := syncbus.NewBus(nil)
	views := dashboard.NewManager(client, bus, nil)
	t.Cleanup(views.CloseAll)

	router := gateway.SetupRoutes(gateway.Deps{
		Views:     views,
		Submitter: client,
		Bus:       bus,
		CORS: shared.CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		},
	})

	return &gatewayTestEnv{Router: router, Bus: bus, Upstream: upstream}
}
