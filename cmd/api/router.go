package main

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/licitasis/internal/audit"
	"github.com/crucial707/licitasis/internal/config"
	"github.com/crucial707/licitasis/internal/handlers"
	"github.com/crucial707/licitasis/internal/middleware"
	"github.com/crucial707/licitasis/internal/models"
	"github.com/crucial707/licitasis/internal/repo"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRecorder builds the audit recorder shared by the router and the retention job.
func newRecorder(db *sql.DB, cfg config.Config) *audit.Recorder {
	rec := audit.NewRecorder(repo.NewAuditRepo(db), slog.Default())
	if cfg.SuspiciousThreshold > 0 {
		rec.SuspiciousThreshold = cfg.SuspiciousThreshold
	}
	return rec
}

func newRouter(db *sql.DB, cfg config.Config) http.Handler {
	return newRouterWithRecorder(db, cfg, newRecorder(db, cfg))
}

func newRouterWithRecorder(db *sql.DB, cfg config.Config, rec *audit.Recorder) http.Handler {
	resolver := audit.ClientResolver{TrustCDNHeader: cfg.TrustCDNHeader}
	userRepo := repo.NewUserRepo(db)
	secret := []byte(cfg.JWTSecret)

	authHandler := &handlers.AuthHandler{
		UserRepo:         userRepo,
		Audit:            rec,
		Resolver:         resolver,
		Secret:           secret,
		TokenTTL:         time.Duration(cfg.JWTExpireHours) * time.Hour,
		SuspiciousWindow: cfg.SuspiciousWindowSeconds,
	}
	profileHandler := &handlers.ProfileHandler{UserRepo: userRepo, Audit: rec, Resolver: resolver}
	auditHandler := &handlers.AuditHandler{Audit: rec, Resolver: resolver}
	userHandler := &handlers.UserHandler{Repo: userRepo, Audit: rec, Resolver: resolver}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog(resolver.ResolveIP))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.With(middleware.AuthRateLimiter(resolver).Middleware).Post("/auth/login", authHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(secret))

		r.Post("/auth/logout", authHandler.Logout)

		r.Get("/me/history", profileHandler.History)
		r.Put("/me/profile", profileHandler.UpdateProfile)
		r.Put("/me/password", profileHandler.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(rec, resolver, models.PermissionAdmin))

			r.Get("/audit/stats", auditHandler.Stats)
			r.Get("/audit/report", auditHandler.Report)
			r.Get("/audit/users/{id}/history", auditHandler.UserHistory)
			r.Post("/audit/cleanup", auditHandler.Cleanup)

			r.Get("/users", userHandler.ListUsers)
			r.Post("/users", userHandler.CreateUser)
			r.Put("/users/{id}", userHandler.UpdateUser)
			r.Delete("/users/{id}", userHandler.DeleteUser)
		})
	})

	return r
}
