package workerserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
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

// WorkerServer is the endpoint GPU nodes poll. It is bound separately
// from the admin server so the two surfaces can be firewalled apart.
type WorkerServer struct {
	cfg      *config.Config
	store    store.Store
	listener net.Listener
	evWriter *events.EventProducer
}

func New(
	cfg *config.Config,
	store store.Store,
	ew *events.EventProducer,
	listener net.Listener,
) *WorkerServer {
	return &WorkerServer{
		cfg:      cfg,
		store:    store,
		evWriter: ew,
		listener: listener,
	}
}

func (s *WorkerServer) Run(ctx context.Context) error {
	zap.S().Named("worker_server").Info("Initializing worker-side API server")

	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("worker_server")
	metricMiddleware.MustRegisterDefault()

	router.Use(
		metricMiddleware.Handler,
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	workerAuth := auth.NewWorkerAuthenticator(s.cfg.Service.WorkerToken)
	h := handlers.NewServiceHandler(service.NewJobService(s.store, s.evWriter))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(workerAuth.Authenticator)
		r.Post("/claim", h.ClaimJob)
		r.Post("/complete", h.CompleteJob)
	})

	srv := http.Server{Addr: s.cfg.Service.WorkerEndpointAddress, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("worker_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
	}()

	zap.S().Named("worker_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}
