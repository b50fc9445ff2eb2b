package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/gpufleet/reviewqueue/internal/auth"
	"github.com/gpufleet/reviewqueue/internal/config"
	"github.com/gpufleet/reviewqueue/internal/events"
	handlers "github.com/gpufleet/reviewqueue/internal/handlers/v1alpha1"
	"github.com/gpufleet/reviewqueue/internal/service"
	"github.com/gpufleet/reviewqueue/internal/store"
	"github.com/gpufleet/reviewqueue/pkg/metrics"
	"github.com/gpufleet/reviewqueue/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
)

// Server is the admin-facing API server. Submissions and listings land
// here; worker traffic goes through the worker server instead.
type Server struct {
	cfg      *config.Config
	store    store.Store
	evWriter *events.EventProducer
	listener net.Listener
}

func New(
	cfg *config.Config,
	store store.Store,
	ew *events.EventProducer,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		evWriter: ew,
		listener: listener,
	}
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return err
	}

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	rateLimiter := middleware.NewRateLimiter(s.cfg.Service.RateLimitWindow, s.cfg.Service.RateLimitMax)
	h := handlers.NewServiceHandler(service.NewJobService(s.store, s.evWriter))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(authenticator.Authenticator)
		r.Get("/", h.ListJobs)
		r.Get("/{id}", h.GetJob)
		r.With(auth.AdminRequired, rateLimiter.Handler).Post("/", h.SubmitJob)
	})

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
