package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiserver "github.com/gpufleet/reviewqueue/internal/api_server"
	"github.com/gpufleet/reviewqueue/internal/api_server/workerserver"
	"github.com/gpufleet/reviewqueue/internal/config"
	"github.com/gpufleet/reviewqueue/internal/events"
	"github.com/gpufleet/reviewqueue/internal/service"
	"github.com/gpufleet/reviewqueue/internal/store"
	"github.com/gpufleet/reviewqueue/pkg/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the review queue api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("failed to initialize data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(cmd.Context()); err != nil {
			zap.S().Fatalw("failed to run initial migration", "error", err)
		}

		ep := newEventProducer(cfg)
		defer func() { _ = ep.Close() }()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalw("failed to create listener", "error", err)
			}

			server := apiserver.New(cfg, s, ep, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run api server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.WorkerEndpointAddress)
			if err != nil {
				zap.S().Fatalw("failed to create listener", "error", err)
			}

			server := workerserver.New(cfg, s, ep, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run worker server", "error", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalw("failed to create listener", "error", err)
			}

			server := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, service.NewJobService(s, nil))
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalw("failed to run metrics server", "error", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func newEventProducer(cfg *config.Config) *events.EventProducer {
	opts := []events.ProducerOptions{}
	if cfg.Service.Kafka.Topic != "" {
		opts = append(opts, events.WithOutputTopic(cfg.Service.Kafka.Topic))
	}

	if len(cfg.Service.Kafka.Brokers) > 0 {
		zap.S().Infow("publishing events to kafka", "brokers", cfg.Service.Kafka.Brokers)
		return events.NewEventProducer(events.NewKafkaWriter(cfg.Service.Kafka.Brokers), opts...)
	}

	return events.NewEventProducer(&events.StdoutWriter{}, opts...)
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
