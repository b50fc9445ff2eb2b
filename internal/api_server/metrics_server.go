package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/gpufleet/reviewqueue/internal/service"
	"github.com/gpufleet/reviewqueue/pkg/metrics"
)

const queueDepthRefreshInterval = 30 * time.Second

type MetricServer struct {
	bindAddress string
	httpServer  *http.Server
	listener    net.Listener
	jobSrv      *service.JobService
}

func NewMetricServer(bindAddress string, listener net.Listener, jobSrv *service.JobService) *MetricServer {
	router := chi.NewRouter()

	prometheusMetricHandler := metrics.NewPrometheusMetricsHandler()
	router.Handle("/metrics", prometheusMetricHandler.Handler())

	s := &MetricServer{
		bindAddress: bindAddress,
		listener:    listener,
		jobSrv:      jobSrv,
		httpServer: &http.Server{
			Addr:    bindAddress,
			Handler: router,
		},
	}

	return s
}

func (m *MetricServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		m.httpServer.SetKeepAlivesEnabled(false)
		_ = m.httpServer.Shutdown(ctxTimeout)
		zap.S().Named("metrics_server").Info("metrics server terminated")
	}()

	ticker := time.NewTicker(queueDepthRefreshInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.refreshQueueDepth(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	zap.S().Named("metrics_server").Infof("serving metrics: %s", m.bindAddress)
	if err := m.httpServer.Serve(m.listener); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (m *MetricServer) refreshQueueDepth(ctx context.Context) {
	stats, err := m.jobSrv.Stats(ctx)
	if err != nil {
		zap.S().Named("metrics_server").Warnw("failed to refresh queue depth", "error", err)
		return
	}

	metrics.QueueDepth.Reset()
	for status, count := range stats {
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(count))
	}
}
