package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"careerprep/pkg/constants"
	"careerprep/pkg/metrics"
	"careerprep/pkg/models"
	"careerprep/pkg/store"
)

// Store keeps each response in a hash and indexes pending and processing
// responses in sorted sets scored by receipt and claim time.
type Store struct {
	rdb     *redis.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

var _ store.Store = (*Store)(nil)

func NewStore(rdb *redis.Client, logger *logrus.Logger, metrics *metrics.Metrics) *Store {
	return &Store{
		rdb:     rdb,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *Store) observe(operation string) func() {
	start := time.Now()
	return func() {
		s.metrics.StoreOperationDuration.WithLabelValues(constants.BackendRedis, operation).Observe(time.Since(start).Seconds())
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close is a no-op; the connection belongs to whoever created it.
func (s *Store) Close() error {
	return nil
}

func responseKey(id string) string {
	return constants.ResponseKeyPrefix + id
}

// CreateResponse stores a new response and queues it when pending
func (s *Store) CreateResponse(ctx context.Context, resp *models.Response) error {
	defer s.observe("create_response")()

	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}
	if resp.ReceivedAt.IsZero() {
		resp.ReceivedAt = time.Now()
	}
	resp.ReceivedAt = resp.ReceivedAt.UTC()
	if resp.ProcessingStatus == "" {
		resp.ProcessingStatus = models.StatusPending
	}

	// Use Redis transaction so the hash and the queue entry land together
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, responseKey(resp.ID), encodeResponse(resp))
		if resp.ProcessingStatus == models.StatusPending && !resp.Processed {
			pipe.ZAdd(ctx, constants.PendingResponsesKey, &redis.Z{
				Score:  float64(resp.ReceivedAt.UnixMilli()),
				Member: resp.ID,
			})
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("response_id", resp.ID).Error("Failed to create response")
		return fmt.Errorf("failed to create response: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"response_id": resp.ID,
		"session_id":  resp.SessionID,
	}).Debug("Stored response")

	return nil
}

func (s *Store) GetResponse(ctx context.Context, id string) (*models.Response, error) {
	defer s.observe("get_response")()

	fields, err := s.rdb.HGetAll(ctx, responseKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	if len(fields) == 0 {
		return nil, store.ErrNotFound
	}
	return decodeResponse(fields)
}

func (s *Store) ClaimPending(ctx context.Context, workerID string, limit int) ([]models.Response, error) {
	defer s.observe("claim_pending")()

	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UnixMilli()
	result, err := claimPendingScript.Run(ctx, s.rdb,
		[]string{constants.PendingResponsesKey, constants.ProcessingKey},
		limit, workerID, now, constants.ResponseKeyPrefix,
	).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim pending responses: %w", err)
	}

	return s.loadResponses(ctx, result)
}

func (s *Store) ClaimByID(ctx context.Context, id, workerID string) (*models.Response, error) {
	defer s.observe("claim_by_id")()

	now := time.Now().UnixMilli()
	result, err := claimByIDScript.Run(ctx, s.rdb,
		[]string{constants.PendingResponsesKey, constants.ProcessingKey, responseKey(id)},
		id, workerID, now,
	).Int64()
	if err != nil {
		return nil, fmt.Errorf("failed to claim response %s: %w", id, err)
	}

	switch result {
	case -1:
		return nil, store.ErrNotFound
	case 0:
		return nil, store.ErrNotClaimable
	}

	claimed, err := s.loadResponses(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return nil, store.ErrNotFound
	}
	return &claimed[0], nil
}

func (s *Store) loadResponses(ctx context.Context, ids []string) ([]models.Response, error) {
	if len(ids) == 0 {
		return []models.Response{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, responseKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load claimed responses: %w", err)
	}

	responses := make([]models.Response, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			s.logger.WithField("response_id", ids[i]).Warn("Claimed response disappeared")
			continue
		}
		resp, err := decodeResponse(fields)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *resp)
	}
	return responses, nil
}

func (s *Store) CompleteResponse(ctx context.Context, id, workerID string, outcome models.Outcome) error {
	defer s.observe("complete_response")()

	args := []interface{}{
		id, workerID,
		"processed", "1",
		"processing_status", string(outcome.Status),
		"auto_response_generated", formatBool(outcome.AutoResponseGenerated),
	}
	if outcome.EscalationReason != nil {
		args = append(args, "escalation_reason", *outcome.EscalationReason)
	}

	return s.finish(ctx, id, args, "complete response")
}

func (s *Store) MarkFailed(ctx context.Context, id, workerID string) error {
	defer s.observe("mark_failed")()

	return s.finish(ctx, id, []interface{}{id, workerID, "processing_status", string(models.StatusFailed)}, "mark response failed")
}

func (s *Store) finish(ctx context.Context, id string, args []interface{}, action string) error {
	result, err := finishScript.Run(ctx, s.rdb,
		[]string{constants.PendingResponsesKey, constants.ProcessingKey, responseKey(id)},
		args...,
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	switch result {
	case -1:
		return store.ErrNotFound
	case 0:
		return store.ErrNotClaimable
	}
	return nil
}

func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int, error) {
	defer s.observe("reclaim_stale")()

	reclaimed, err := reclaimStaleScript.Run(ctx, s.rdb,
		[]string{constants.PendingResponsesKey, constants.ProcessingKey},
		cutoff.UnixMilli(), constants.ResponseKeyPrefix,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale responses: %w", err)
	}

	if reclaimed > 0 {
		s.logger.WithFields(logrus.Fields{
			"reclaimed_count": reclaimed,
			"cutoff":          cutoff,
		}).Info("Returned stale claims to pending")
	}

	return reclaimed, nil
}

func (s *Store) CountPending(ctx context.Context) (int64, error) {
	defer s.observe("count_pending")()

	count, err := s.rdb.ZCard(ctx, constants.PendingResponsesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count pending responses: %w", err)
	}
	return count, nil
}

func encodeResponse(r *models.Response) map[string]interface{} {
	fields := map[string]interface{}{
		"id":                      r.ID,
		"message_id":              r.MessageID,
		"session_id":              r.SessionID,
		"user_id":                 r.UserID,
		"content":                 r.Content,
		"received_at":             r.ReceivedAt.Format(time.RFC3339Nano),
		"received_at_ms":          r.ReceivedAt.UnixMilli(),
		"processed":               formatBool(r.Processed),
		"processing_status":       string(r.ProcessingStatus),
		"auto_response_generated": formatBool(r.AutoResponseGenerated),
	}
	if r.EscalationReason != nil {
		fields["escalation_reason"] = *r.EscalationReason
	}
	if r.ClaimedBy != "" {
		fields["claimed_by"] = r.ClaimedBy
	}
	if r.ClaimedAt != nil {
		fields["claimed_at"] = r.ClaimedAt.UnixMilli()
	}
	return fields
}

func decodeResponse(fields map[string]string) (*models.Response, error) {
	receivedAt, err := time.Parse(time.RFC3339Nano, fields["received_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid received_at for response %s: %w", fields["id"], err)
	}

	resp := &models.Response{
		ID:                    fields["id"],
		MessageID:             fields["message_id"],
		SessionID:             fields["session_id"],
		UserID:                fields["user_id"],
		Content:               fields["content"],
		ReceivedAt:            receivedAt,
		Processed:             fields["processed"] == "1",
		ProcessingStatus:      models.ProcessingStatus(fields["processing_status"]),
		AutoResponseGenerated: fields["auto_response_generated"] == "1",
		ClaimedBy:             fields["claimed_by"],
	}

	if reason, ok := fields["escalation_reason"]; ok {
		resp.EscalationReason = &reason
	}
	if claimedAt, ok := fields["claimed_at"]; ok {
		ms, err := strconv.ParseInt(claimedAt, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid claimed_at for response %s: %w", resp.ID, err)
		}
		t := time.UnixMilli(ms).UTC()
		resp.ClaimedAt = &t
	}

	return resp, nil
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
