package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/biometric-auth/internal/transport/http/middleware"
	"github.com/baechuer/biometric-auth/internal/transport/http/response"
)

type HealthHandler interface {
	Healthz(w http.ResponseWriter, r *http.Request)
	Readyz(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	LoginBiometric(w http.ResponseWriter, r *http.Request)
	Refresh(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
	Attempts(w http.ResponseWriter, r *http.Request)
}

type BiometricHandler interface {
	Enroll(w http.ResponseWriter, r *http.Request)
	Verify(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	Templates(w http.ResponseWriter, r *http.Request)
	DeleteTemplate(w http.ResponseWriter, r *http.Request)
	SetPrimary(w http.ResponseWriter, r *http.Request)
}

type Middleware = func(http.Handler) http.Handler

type Deps struct {
	Health    HealthHandler
	Auth      AuthHandler
	Biometric BiometricHandler

	AuthMW Middleware
	// Optional rate limits; nil disables.
	LoginRL     Middleware
	BiometricRL Middleware

	AllowedOrigins []string
	MaxBodyBytes   int64
	TrustProxy     bool
	HSTS           bool
}

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.Biometric == nil {
		return nil, fmt.Errorf("nil Biometric handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	loginRL := orPass(deps.LoginRL)
	bioRL := orPass(deps.BiometricRL)

	r := chi.NewRouter()

	// RealIP must run before anything that records the client address.
	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.AccessLog)
	r.Use(middleware.SecurityHeaders(deps.HSTS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderXRequestID},
		ExposedHeaders:   []string{middleware.HeaderXRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.BodyLimit(deps.MaxBodyBytes, response.WriteError))

	r.Get("/healthz", deps.Health.Healthz)
	r.Get("/readyz", deps.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.Auth.Register)
		r.With(loginRL).Post("/login", deps.Auth.Login)
		r.With(loginRL).Post("/login-biometric", deps.Auth.LoginBiometric)
		r.Post("/refresh", deps.Auth.Refresh)
		r.Post("/logout", deps.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthMW)
			r.Get("/me", deps.Auth.Me)
			r.Get("/attempts", deps.Auth.Attempts)
		})
	})

	r.Route("/biometric", func(r chi.Router) {
		r.Use(deps.AuthMW)
		r.Use(bioRL)

		r.Post("/enroll", deps.Biometric.Enroll)
		r.Post("/verify", deps.Biometric.Verify)
		r.Get("/status", deps.Biometric.Status)
		r.Get("/templates", deps.Biometric.Templates)
		r.Delete("/template/{id}", deps.Biometric.DeleteTemplate)
		r.Post("/template/{id}/primary", deps.Biometric.SetPrimary)
	})

	return r, nil
}

func orPass(mw Middleware) Middleware {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
