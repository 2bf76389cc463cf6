package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"careerprep/pkg/config"
	"careerprep/pkg/constants"
	"careerprep/pkg/metrics"
)

// Elector decides which pod runs the periodic batch
type Elector interface {
	Start(ctx context.Context) error
	Stop()
	IsLeader() bool
	// VerifyLeadership checks the shared lock instead of the cached state
	VerifyLeadership(ctx context.Context) bool
}

var renewScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("EXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

var resignScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// LeaderElection holds a TTL'd Redis key naming the current leader pod
type LeaderElection struct {
	rdb      *redis.Client
	config   *config.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	interval time.Duration
	isLeader atomic.Bool
	stopCh   chan struct{}
	stopped  atomic.Bool
}

func NewLeaderElection(rdb *redis.Client, config *config.Config, logger *logrus.Logger, metrics *metrics.Metrics) *LeaderElection {
	return &LeaderElection{
		rdb:      rdb,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		interval: constants.SecondsToDuration(constants.DefaultLeaderElectionIntervalSeconds),
		stopCh:   make(chan struct{}),
	}
}

func (le *LeaderElection) Start(ctx context.Context) error {
	le.logger.Info("Starting leader election process")

	// Try to become leader immediately
	le.tryBecomeLeader(ctx)

	go le.leaderElectionLoop(ctx)

	return nil
}

func (le *LeaderElection) Stop() {
	if !le.stopped.CompareAndSwap(false, true) {
		return
	}
	close(le.stopCh)
	if le.isLeader.Load() {
		le.resignLeadership(context.Background())
	}
}

// IsLeader reports the locally cached leadership state, refreshed every
// election interval.
func (le *LeaderElection) IsLeader() bool {
	return le.isLeader.Load()
}

// VerifyLeadership checks leadership against Redis and updates the cache
func (le *LeaderElection) VerifyLeadership(ctx context.Context) bool {
	currentLeader, err := le.rdb.Get(ctx, constants.LeaderElectionKey).Result()
	if err != nil {
		le.setLeader(false)
		return false
	}

	le.setLeader(currentLeader == le.config.PodID)
	return le.isLeader.Load()
}

func (le *LeaderElection) setLeader(leader bool) {
	if le.isLeader.Swap(leader) == leader {
		return
	}
	if leader {
		le.logger.WithField("pod_id", le.config.PodID).Info("Became leader")
		le.metrics.LeaderChanges.Inc()
	} else {
		le.logger.WithField("pod_id", le.config.PodID).Info("Lost leadership")
	}
}

func (le *LeaderElection) leaderElectionLoop(ctx context.Context) {
	ticker := time.NewTicker(le.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-le.stopCh:
			return
		case <-ticker.C:
			le.tryBecomeLeader(ctx)
		}
	}
}

func (le *LeaderElection) tryBecomeLeader(ctx context.Context) {
	start := time.Now()
	defer func() {
		le.metrics.LeaderElectionDuration.Observe(time.Since(start).Seconds())
	}()

	acquired, err := le.rdb.SetNX(ctx, constants.LeaderElectionKey, le.config.PodID, le.config.LeaderElectionTTLDuration()).Result()
	if err != nil {
		le.logger.WithError(err).Error("Failed to attempt leader election")
		le.setLeader(false)
		return
	}

	if acquired {
		le.setLeader(true)
		return
	}

	// Key exists: renew it if it is ours
	le.renewLeadership(ctx)
}

func (le *LeaderElection) renewLeadership(ctx context.Context) {
	result, err := renewScript.Run(ctx, le.rdb, []string{constants.LeaderElectionKey}, le.config.PodID, le.config.LeaderElectionTTL).Int64()
	if err != nil {
		le.logger.WithError(err).Error("Failed to renew leadership")
		le.setLeader(false)
		return
	}

	le.setLeader(result == 1)
}

func (le *LeaderElection) resignLeadership(ctx context.Context) {
	if err := resignScript.Run(ctx, le.rdb, []string{constants.LeaderElectionKey}, le.config.PodID).Err(); err != nil {
		le.logger.WithError(err).Error("Failed to resign leadership")
	} else {
		le.logger.Info("Resigned leadership")
	}
	le.isLeader.Store(false)
}

// StandaloneElector always leads. It serves single-node deployments on the
// SQLite backend, where no shared lock exists.
type StandaloneElector struct{}

func (StandaloneElector) Start(ctx context.Context) error { return nil }
func (StandaloneElector) Stop()                           {}
func (StandaloneElector) IsLeader() bool                  { return true }

func (StandaloneElector) VerifyLeadership(ctx context.Context) bool { return true }
