package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"savor/internal/auth"
	"savor/internal/geocoder"
	"savor/internal/mailer"
	"savor/internal/ratelimiter"
	"savor/internal/ratings"
	"savor/internal/store"
)

type application struct {
	config        config
	store         store.Storage
	ratings       *ratings.Engine
	logger        *zap.SugaredLogger
	cld           *cloudinary.Cloudinary
	mailer        mailer.Client
	authenticator auth.Authenticator
	geocoder      geocoder.Client
	rateLimiter   ratelimiter.Limiter
}

type config struct {
	addr        string
	env         string
	frontendURL string
	db          dbConfig
	mail        mailConfig
	auth        authConfig
	geocoder    geocoderConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type mailConfig struct {
	fromEmail string
	host      string
	port      int
	username  string
	password  string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type basicConfig struct {
	user string
	pass string
}

type tokenConfig struct {
	secret          string
	refreshSecret   string
	iss             string
	accessTokenExp  time.Duration
	refreshTokenExp time.Duration
}

type geocoderConfig struct {
	baseURL   string
	userAgent string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(app.RateLimiterMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", app.registerUserHandler)
			r.Put("/activate/{token}", app.activateUserHandler)
			r.Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
			r.Post("/forgot-password", app.forgotPasswordHandler)
			r.Put("/reset-password/{resetToken}", app.resetPasswordHandler)
			r.With(app.AuthTokenMiddleware).Patch("/update-password", app.updatePasswordHandler)
			r.With(app.AuthTokenMiddleware).Post("/logout", app.logoutHandler)
		})

		r.Route("/venues", func(r chi.Router) {
			r.Get("/", app.listVenuesHandler)
			r.Get("/{venueID}", app.getVenueHandler)
			r.Get("/{venueID}/reviews", app.listVenueReviewsHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/", app.createVenueHandler)
				r.Patch("/{venueID}", app.updateVenueHandler)
				r.Delete("/{venueID}", app.deleteVenueHandler)
				r.Post("/{venueID}/cover", app.uploadVenueCoverHandler)
				r.Post("/{venueID}/reviews", app.createVenueReviewHandler)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Get("/", app.listReviewsHandler)
			r.Get("/{reviewID}", app.getReviewHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Patch("/{reviewID}", app.updateReviewHandler)
				r.Delete("/{reviewID}", app.deleteReviewHandler)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Put("/", app.updateUserHandler)
			r.With(app.RequireAdmin).Get("/", app.listUsersHandler)
			r.With(app.RequireAdmin).Get("/{userID}", app.getUserHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RequireAdmin)
			r.Patch("/venues/{venueID}/ban", app.banVenueHandler)
			r.Patch("/venues/{venueID}/unban", app.unbanVenueHandler)
			r.Patch("/users/{userID}/deactivate", app.deactivateUserHandler)
			r.Patch("/users/{userID}/activate", app.reactivateUserHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())
		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)
	return nil
}
