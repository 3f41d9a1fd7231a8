// Package api exposes the HTTP interface for the dashboard backend.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/vindash/internal/config"
	"github.com/vindash/internal/database"
	"github.com/vindash/internal/metrics"
	"github.com/vindash/internal/service"
	"github.com/vindash/internal/vault"
)

// userIDHeader carries the authenticated user identity set by the edge
// proxy.
const userIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// Server wires HTTP handlers to the orchestrator and repositories.
type Server struct {
	router         chi.Router
	cfg            *config.Config
	db             *sqlx.DB
	orchestrator   *service.Orchestrator
	submissionRepo *database.SubmissionRepository
	reportRepo     *database.ReportRepository
	credentialRepo *database.CredentialRepository
	settingRepo    *database.SettingRepository
	vault          *vault.Vault
	metrics        *metrics.Metrics
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg *config.Config, db *sqlx.DB, orchestrator *service.Orchestrator, v *vault.Vault, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:            cfg,
		db:             db,
		orchestrator:   orchestrator,
		submissionRepo: database.NewSubmissionRepository(db),
		reportRepo:     database.NewReportRepository(db),
		credentialRepo: database.NewCredentialRepository(db),
		settingRepo:    database.NewSettingRepository(db),
		vault:          v,
		metrics:        m,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Automation endpoints, reached without a user identity
		r.Post("/webhook/status", s.webhookStatus)
		r.Post("/session/cookie", s.updateSessionCookie)
		r.Get("/apify/test", s.testApifyConnection)
		r.Get("/instant/{vin}", s.instantReport)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Route("/submissions", func(r chi.Router) {
				r.Post("/", s.submitVIN)
				r.Post("/bulk", s.submitVINsBulk)
				r.Get("/", s.listSubmissions)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getSubmission)
					r.Get("/report", s.getSubmissionReport)
					r.Get("/export/json", s.exportJSON)
					r.Get("/export/csv", s.exportCSV)
					r.Get("/export/pdf", s.exportPDF)
				})
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/", s.listReports)
				r.Get("/vin/{vin}", s.getReportByVIN)
			})

			r.Route("/credentials", func(r chi.Router) {
				r.Post("/", s.storeCredentials)
				r.Get("/status", s.credentialStatus)
				r.Delete("/", s.deleteCredentials)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/pending", s.adminPendingQueue)
				r.Get("/settings", s.listSettings)
				r.Put("/settings", s.upsertSetting)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireUser rejects requests without a user identity header.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userIDHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// requestLogger logs each request with its duration and records API
// metrics.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}

		s.metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), duration)
		logrus.Debugf("%s %s -> %d (%v)", r.Method, r.URL.Path, ww.Status(), duration)
	})
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
