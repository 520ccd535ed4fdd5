package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/http/handler"
	"github.com/campusmarket/accountkit/internal/http/middleware"
	"github.com/campusmarket/accountkit/internal/http/response"
	"github.com/campusmarket/accountkit/internal/security"
)

type Dependencies struct {
	AuthHandler      *handler.AuthHandler
	RestHandler      *handler.RestHandler
	JWTManager       *security.JWTManager
	AnonKey          string
	CORSOrigins      []string
	AuthRateLimitRPM int
	AuthRateLimiter  AuthRateLimiterFunc
	Readiness        *health.ReadinessRunner
	EnableOTelHTTP   bool
}

type AuthRateLimiterFunc func(http.Handler) http.Handler

// NewRouter mounts the GoTrue API under /auth/v1 and the profiles table
// under /rest/v1. Both require the project apikey.
func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(dep.AuthRateLimitRPM, time.Minute).Middleware()
	}
	requireAuth := middleware.AuthMiddleware(dep.JWTManager)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "unready"
		}
		response.JSON(w, r, status, map[string]any{"status": label, "checks": results})
	})

	r.Route("/auth/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(dep.AnonKey))
		r.Get("/health", dep.AuthHandler.Health)
		r.With(authLimiter).Post("/signup", dep.AuthHandler.SignUp)
		r.With(authLimiter).Post("/token", dep.AuthHandler.Token)
		r.With(authLimiter).Post("/recover", dep.AuthHandler.Recover)
		r.With(authLimiter).Post("/verify", dep.AuthHandler.Verify)
		r.With(requireAuth).Post("/logout", dep.AuthHandler.Logout)
		r.With(requireAuth).Get("/user", dep.AuthHandler.GetUser)
		r.With(requireAuth).Put("/user", dep.AuthHandler.UpdateUser)
	})

	r.Route("/rest/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(dep.AnonKey))
		r.Use(middleware.OptionalAuth(dep.JWTManager, dep.AnonKey))
		r.Get("/profiles", dep.RestHandler.SelectProfiles)
		r.Patch("/profiles", dep.RestHandler.UpdateProfiles)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
