package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerprep/pkg/constants"
	"careerprep/pkg/metrics"
	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

func setupTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   1, // Use test database
	})

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	// Clean up test data
	rdb.FlushDB(ctx)
	t.Cleanup(func() { rdb.Close() })

	return rdb
}

func setupTestStore(t *testing.T) (*Store, *redis.Client) {
	rdb := setupTestRedis(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return NewStore(rdb, logger, metrics.NewMetrics(prometheus.NewRegistry())), rdb
}

func createResponse(t *testing.T, s *Store, id string, receivedAt time.Time) {
	t.Helper()
	err := s.CreateResponse(context.Background(), &models.Response{
		ID:         id,
		MessageID:  "msg_1",
		SessionID:  "session_1",
		UserID:     "user_1",
		Content:    "content for " + id,
		ReceivedAt: receivedAt,
	})
	require.NoError(t, err)
}

func TestStore_CreateResponse(t *testing.T) {
	s, rdb := setupTestStore(t)
	ctx := context.Background()

	receivedAt := time.Now()
	createResponse(t, s, "resp_1", receivedAt)

	// Verify response is queued by receipt time
	score, err := rdb.ZScore(ctx, constants.PendingResponsesKey, "resp_1").Result()
	assert.NoError(t, err)
	assert.Equal(t, float64(receivedAt.UnixMilli()), score)

	got, err := s.GetResponse(ctx, "resp_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.ProcessingStatus)
	assert.False(t, got.Processed)
	assert.Nil(t, got.EscalationReason)
	assert.True(t, got.ReceivedAt.Equal(receivedAt.UTC()))

	_, err = s.GetResponse(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ClaimPendingOldestFirst(t *testing.T) {
	s, rdb := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	createResponse(t, s, "resp_c", base.Add(3*time.Minute))
	createResponse(t, s, "resp_a", base.Add(1*time.Minute))
	createResponse(t, s, "resp_b", base.Add(2*time.Minute))

	claimed, err := s.ClaimPending(ctx, "worker-1", 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "resp_a", claimed[0].ID)
	assert.Equal(t, "resp_b", claimed[1].ID)
	assert.Equal(t, models.StatusProcessing, claimed[0].ProcessingStatus)
	assert.Equal(t, "worker-1", claimed[0].ClaimedBy)
	assert.NotNil(t, claimed[0].ClaimedAt)

	processing, err := rdb.ZCard(ctx, constants.ProcessingKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), processing)

	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_ClaimByID(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	createResponse(t, s, "resp_1", time.Now())

	resp, err := s.ClaimByID(ctx, "resp_1", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, resp.ProcessingStatus)

	_, err = s.ClaimByID(ctx, "resp_1", "worker-2")
	assert.ErrorIs(t, err, store.ErrNotClaimable)

	_, err = s.ClaimByID(ctx, "missing", "worker-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_CompleteAndFail(t *testing.T) {
	s, rdb := setupTestStore(t)
	ctx := context.Background()

	createResponse(t, s, "resp_1", time.Now())
	createResponse(t, s, "resp_2", time.Now())
	_, err := s.ClaimPending(ctx, "worker-1", 10)
	require.NoError(t, err)

	require.NoError(t, s.CompleteResponse(ctx, "resp_1", "worker-1", models.Outcome{
		Status:                models.StatusProcessed,
		AutoResponseGenerated: true,
	}))
	require.NoError(t, s.MarkFailed(ctx, "resp_2", "worker-1"))

	done, err := s.GetResponse(ctx, "resp_1")
	require.NoError(t, err)
	assert.True(t, done.Processed)
	assert.Equal(t, models.StatusProcessed, done.ProcessingStatus)
	assert.True(t, done.AutoResponseGenerated)
	assert.Empty(t, done.ClaimedBy)
	assert.Nil(t, done.ClaimedAt)

	failed, err := s.GetResponse(ctx, "resp_2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.ProcessingStatus)
	assert.False(t, failed.Processed)

	processing, err := rdb.ZCard(ctx, constants.ProcessingKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), processing)

	assert.ErrorIs(t, s.MarkFailed(ctx, "missing", "worker-1"), store.ErrNotFound)
}

func TestStore_ReclaimStale(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	createResponse(t, s, "resp_1", time.Now().Add(-time.Minute))
	_, err := s.ClaimPending(ctx, "crashed-worker", 10)
	require.NoError(t, err)

	reclaimed, err := s.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed)

	reclaimed, err = s.ReclaimStale(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed)

	got, err := s.GetResponse(ctx, "resp_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.ProcessingStatus)
	assert.Nil(t, got.ClaimedAt)

	claimed, err := s.ClaimPending(ctx, "worker-2", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "worker-2", claimed[0].ClaimedBy)
}

func TestStore_StaleWorkerCannotOverwriteOutcome(t *testing.T) {
	s, rdb := setupTestStore(t)
	ctx := context.Background()

	createResponse(t, s, "resp_1", time.Now())
	_, err := s.ClaimByID(ctx, "resp_1", "slow-worker")
	require.NoError(t, err)

	reclaimed, err := s.ReclaimStale(ctx, time.Now().Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, reclaimed)

	// reclaimed but not yet claimed again
	assert.ErrorIs(t, s.MarkFailed(ctx, "resp_1", "slow-worker"), store.ErrNotClaimable)

	_, err = s.ClaimByID(ctx, "resp_1", "fresh-worker")
	require.NoError(t, err)

	reason := "Contains keywords indicating intern needs help"
	require.NoError(t, s.CompleteResponse(ctx, "resp_1", "fresh-worker", models.Outcome{Status: models.StatusEscalated, EscalationReason: &reason}))

	err = s.CompleteResponse(ctx, "resp_1", "slow-worker", models.Outcome{Status: models.StatusProcessed, AutoResponseGenerated: true})
	assert.ErrorIs(t, err, store.ErrNotClaimable)
	assert.ErrorIs(t, s.MarkFailed(ctx, "resp_1", "slow-worker"), store.ErrNotClaimable)

	got, err := s.GetResponse(ctx, "resp_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, got.ProcessingStatus)
	assert.False(t, got.AutoResponseGenerated)
	require.NotNil(t, got.EscalationReason)
	assert.Equal(t, reason, *got.EscalationReason)

	pending, err := rdb.ZCard(ctx, constants.PendingResponsesKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
}

func TestStore_ContextRecords(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMessage(ctx, &models.Message{
		ID:         "msg_1",
		SessionID:  "session_1",
		SenderType: models.SenderSupervisor,
		Content:    "Please send your weekly update.",
		SentAt:     time.Now().Add(-time.Hour),
	}))
	reply := &models.Message{SessionID: "session_1", SenderType: models.SenderSupervisor, Content: "Thanks!", IsAutoResponse: true}
	require.NoError(t, s.InsertMessage(ctx, reply))
	assert.NotEmpty(t, reply.ID)

	msg, err := s.GetMessage(ctx, "msg_1")
	require.NoError(t, err)
	assert.Equal(t, models.SenderSupervisor, msg.SenderType)

	messages, err := s.ListSessionMessages(ctx, "session_1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "msg_1", messages[0].ID)
	assert.Equal(t, reply.ID, messages[1].ID)

	require.NoError(t, s.SaveSession(ctx, &models.Session{ID: "session_1", JobTitle: "Analyst Intern", CompanyName: "Northwind"}))
	require.NoError(t, s.SaveProfile(ctx, &models.Profile{ID: "user_1", FullName: "Alex Kim"}))

	session, err := s.GetSession(ctx, "session_1")
	require.NoError(t, err)
	assert.Equal(t, "Northwind", session.CompanyName)

	profile, err := s.GetProfile(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Alex Kim", profile.FullName)

	_, err = s.GetMessage(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
