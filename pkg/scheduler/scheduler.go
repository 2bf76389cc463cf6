package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"careerprep/pkg/processor"
)

// BatchRunner is the part of the processor the scheduler drives
type BatchRunner interface {
	ProcessBatch(ctx context.Context) (*processor.BatchResult, error)
	ReclaimStale(ctx context.Context) (int, error)
}

// Scheduler runs the periodic batch and stale-claim reclaim on the leader only.
type Scheduler struct {
	elector         Elector
	runner          BatchRunner
	logger          *logrus.Logger
	processInterval time.Duration // zero disables the periodic batch
	reclaimInterval time.Duration
	stopCh          chan struct{}
	done            chan struct{}
}

func NewScheduler(elector Elector, runner BatchRunner, processInterval, reclaimInterval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		elector:         elector,
		runner:          runner,
		logger:          logger,
		processInterval: processInterval,
		reclaimInterval: reclaimInterval,
		stopCh:          make(chan struct{}),
		done:            make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.elector.Start(ctx); err != nil {
		return err
	}

	go s.loop(ctx)

	s.logger.WithFields(logrus.Fields{
		"process_interval": s.processInterval,
		"reclaim_interval": s.reclaimInterval,
	}).Info("Scheduler started")
	return nil
}

// Stop ends the loops, waits for an in-flight run and resigns leadership.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.done
	s.elector.Stop()
}

func (s *Scheduler) IsLeader() bool {
	return s.elector.IsLeader()
}

func (s *Scheduler) VerifyLeadership(ctx context.Context) bool {
	return s.elector.VerifyLeadership(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	reclaimTicker := time.NewTicker(s.reclaimInterval)
	defer reclaimTicker.Stop()

	// a nil channel never fires, leaving the batch timer off
	var processC <-chan time.Time
	if s.processInterval > 0 {
		processTicker := time.NewTicker(s.processInterval)
		defer processTicker.Stop()
		processC = processTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-reclaimTicker.C:
			if s.elector.IsLeader() {
				s.reclaim(ctx)
			}
		case <-processC:
			if s.elector.IsLeader() {
				s.runBatch(ctx)
			}
		}
	}
}

func (s *Scheduler) runBatch(ctx context.Context) {
	if _, err := s.runner.ProcessBatch(ctx); err != nil {
		s.logger.WithError(err).Error("Scheduled batch failed")
	}
}

func (s *Scheduler) reclaim(ctx context.Context) {
	if _, err := s.runner.ReclaimStale(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to reclaim stale responses")
	}
}
