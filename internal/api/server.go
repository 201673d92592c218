package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nerisbridge/internal/config"
	"nerisbridge/internal/store"
	"nerisbridge/internal/submit"
)

// maxBodyBytes caps inbound JSON bodies at 4MB.
const maxBodyBytes = 4 << 20

type Server struct {
	cfg   config.Config
	orch  *submit.Orchestrator
	store *store.Store
	log   *log.Logger
}

func New(cfg config.Config, orch *submit.Orchestrator, st *store.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "nerisbridge ", log.LstdFlags|log.LUTC)
	}
	return &Server{cfg: cfg, orch: orch, store: st, log: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/department/{id}", s.handleGetDepartment)
		r.Post("/department/{id}", s.handlePutDepartment)
		r.Get("/debug/entities", s.handleListEntities)
		r.Get("/debug/incident", s.handleGetIncident)
		r.Post("/validate", s.handleValidate)
		r.Post("/export", s.handleExport)
	})

	return r
}

// recoverer reduces any top-level panic to a generic 500 JSON failure.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
