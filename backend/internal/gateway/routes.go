package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gradepulse/backend/internal/dashboard"
	"gradepulse/backend/internal/gateway/handlers"
	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// Deps are the collaborators the gateway routes need.
type Deps struct {
	Views     *dashboard.Manager
	Submitter handlers.ScoreSubmitter
	Bus       *syncbus.Bus
	CORS      shared.CORSConfig
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS Configuration (browser dashboards)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORS.AllowedOrigins,
		AllowedMethods:   deps.CORS.AllowedMethods,
		AllowedHeaders:   deps.CORS.AllowedHeaders,
		AllowCredentials: deps.CORS.AllowCredentials,
		MaxAge:           deps.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	analyticsHandler := &handlers.AnalyticsHandler{Views: deps.Views}
	gradebookHandler := &handlers.GradebookHandler{Views: deps.Views, Submitter: deps.Submitter, Bus: deps.Bus}
	studentHandler := &handlers.StudentHandler{Views: deps.Views}
	parentHandler := &handlers.ParentHandler{Views: deps.Views}

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		r.Route("/dashboards", func(r chi.Router) {
			// Admin analytics
			r.Get("/analytics", analyticsHandler.GetAnalytics)
			r.Post("/analytics/refresh", analyticsHandler.RefreshAnalytics)

			// Teacher gradebook
			r.Get("/gradebook", gradebookHandler.GetGradebook)
			r.Post("/gradebook/refresh", gradebookHandler.RefreshGradebook)

			// Student gradebook
			r.Get("/student/{student_id}", studentHandler.GetStudentGradebook)
			r.Post("/student/{student_id}/refresh", studentHandler.RefreshStudentGradebook)

			// Parent dashboard
			r.Get("/parent", parentHandler.GetParentDashboard)
			r.Post("/parent/refresh", parentHandler.RefreshParentDashboard)
		})

		// Mutations
		r.Post("/grades/score", gradebookHandler.SubmitScore)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
