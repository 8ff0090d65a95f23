package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/projectaudit/engine/internal/api/handlers"
	mw "github.com/projectaudit/engine/internal/api/middleware"
	"github.com/projectaudit/engine/internal/models"
)

type Dependencies struct {
	HMACSecret        []byte
	RateLimitRPS      float64
	RateLimitBurst    int
	HealthHandler     *handlers.HealthHandler
	AuthHandler       *handlers.AuthHandler
	ProjectsHandler   *handlers.ProjectsHandler
	AnalysisHandler   *handlers.AnalysisHandler
	SimilarityHandler *handlers.SimilarityHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	if dep.RateLimitRPS > 0 {
		r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	}
	r.Use(chimid.Compress(5))

	hh := dep.HealthHandler
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	faculty := mw.RequireRole(models.RoleFaculty)
	student := mw.RequireRole(models.RoleStudent)

	r.Route("/api/v1", func(api chi.Router) {
		// Public
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})
		api.Get("/faculty", dep.AuthHandler.FacultyList)

		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Route("/projects", func(pr chi.Router) {
				pr.With(student).Post("/", dep.ProjectsHandler.Submit)
				pr.Get("/student", dep.ProjectsHandler.ListStudent)
				pr.With(faculty).Get("/faculty", dep.ProjectsHandler.ListFaculty)
				pr.With(student).Put("/{id}", dep.ProjectsHandler.Resubmit)
				pr.With(faculty).Put("/{id}/status", dep.ProjectsHandler.Review)
				pr.Delete("/{id}", dep.ProjectsHandler.Delete)
			})

			protected.Route("/analysis", func(ar chi.Router) {
				ar.Use(faculty)
				ar.Get("/similarity", dep.AnalysisHandler.Similarity)
				ar.Get("/stats", dep.AnalysisHandler.Stats)
			})

			protected.Get("/ai/status", dep.SimilarityHandler.Status)
			protected.With(faculty).Post("/similarity/rebuild", dep.SimilarityHandler.Rebuild)
		})
	})

	return r
}
