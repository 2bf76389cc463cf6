// Package service assembles the store, processor, scheduler and HTTP server
// for one pod and owns their lifecycle.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"careerprep/pkg/config"
	"careerprep/pkg/constants"
	"careerprep/pkg/handlers"
	"careerprep/pkg/llm"
	"careerprep/pkg/metrics"
	"careerprep/pkg/processor"
	redisClient "careerprep/pkg/redis"
	"careerprep/pkg/scheduler"
	"careerprep/pkg/server"
	"careerprep/pkg/store"
	"careerprep/pkg/store/redisstore"
	"careerprep/pkg/store/sqlstore"
	"careerprep/pkg/templates"
)

type Service struct {
	config    *config.Config
	logger    *logrus.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	store     store.Store
	redis     *redisClient.Client // nil on the sqlite backend
	processor *processor.Processor
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// New connects the configured backend and builds every component. Nothing
// runs until Start.
func New(ctx context.Context, config *config.Config, logger *logrus.Logger) (*Service, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(registry)

	s := &Service{
		config:   config,
		logger:   logger,
		registry: registry,
		metrics:  m,
	}

	var elector scheduler.Elector
	switch config.StoreBackend {
	case constants.BackendRedis:
		client, err := redisClient.Connect(ctx, redisClient.DefaultConnectionConfig(config.RedisURL), logger)
		if err != nil {
			return nil, err
		}
		s.redis = client
		s.store = redisstore.NewStore(client.GetRedisClient(), logger, m)
		elector = scheduler.NewLeaderElection(client.GetRedisClient(), config, logger, m)

	case constants.BackendSQLite:
		st, err := sqlstore.Open(config.SQLitePath, logger, m)
		if err != nil {
			return nil, err
		}
		s.store = st
		elector = scheduler.StandaloneElector{}

	default:
		return nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
	}

	engine, err := templates.NewEngine()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	completer := llm.NewClient(llm.Config{
		BaseURL:     config.LLMBaseURL,
		APIKey:      config.LLMAPIKey,
		Model:       config.LLMModel,
		MaxTokens:   config.LLMMaxTokens,
		Temperature: float32(config.LLMTemperature),
		Timeout:     config.LLMTimeout(),
	}, logger)

	s.processor = processor.NewProcessor(s.store, completer, engine, processor.NewLogNotifier(logger), config, logger, m)
	s.scheduler = scheduler.NewScheduler(
		elector,
		s.processor,
		config.ProcessInterval(),
		constants.SecondsToDuration(constants.DefaultReclaimIntervalSeconds),
		logger,
	)

	handler := handlers.NewHandler(s.store, s.processor, config, logger, s.scheduler)
	s.server = server.NewHTTPServer(config, handler, registry, logger)

	return s, nil
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting response processing service")

	if err := s.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"pod_id":  s.config.PodID,
		"backend": s.config.StoreBackend,
	}).Info("Service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping service")

	s.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
	}

	if closeErr := s.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	s.logger.Info("Service stopped")
	return err
}

// Close releases the store and the Redis connection without touching the
// scheduler or server. One-shot commands call it directly.
func (s *Service) Close() error {
	var err error
	if s.store != nil {
		err = s.store.Close()
	}
	if s.redis != nil {
		if closeErr := s.redis.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func (s *Service) IsLeader() bool {
	return s.scheduler.IsLeader()
}

func (s *Service) Processor() *processor.Processor {
	return s.processor
}
