// Package processor turns intern replies into an escalation, an automatic
// reply, or nothing, and records the outcome.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"careerprep/pkg/analyzer"
	"careerprep/pkg/config"
	"careerprep/pkg/llm"
	"careerprep/pkg/metrics"
	"careerprep/pkg/models"
	"careerprep/pkg/store"
	"careerprep/pkg/templates"
)

// Action is what the processor did with a response
type Action string

const (
	ActionEscalated        Action = "escalated"
	ActionAutoResponseSent Action = "auto_response_sent"
	ActionMarkedProcessed  Action = "marked_processed"
)

// Result describes one successfully processed response
type Result struct {
	ResponseID            string                  `json:"response_id"`
	Action                Action                  `json:"action_taken"`
	Status                models.ProcessingStatus `json:"processing_status"`
	EscalationReason      *string                 `json:"escalation_reason"`
	AutoResponseGenerated bool                    `json:"auto_response_generated"`
	AutoResponseID        string                  `json:"auto_response_id,omitempty"`
	FallbackUsed          bool                    `json:"fallback_used,omitempty"`
	Notification          string                  `json:"notification,omitempty"`
}

// Failure is a response that could not be processed
type Failure struct {
	ResponseID string `json:"response_id"`
	Error      string `json:"error"`
}

// BatchResult summarizes a batch run. A failed item never aborts the batch.
type BatchResult struct {
	ProcessedCount int       `json:"processed_count"`
	FailedCount    int       `json:"failed_count"`
	Processed      []Result  `json:"processed_responses"`
	Failed         []Failure `json:"failed_responses"`
}

type Processor struct {
	store     store.Store
	completer llm.Completer
	templates *templates.Engine
	notifier  EscalationNotifier
	config    *config.Config
	logger    *logrus.Logger
	metrics   *metrics.Metrics
}

func NewProcessor(st store.Store, completer llm.Completer, engine *templates.Engine, notifier EscalationNotifier, config *config.Config, logger *logrus.Logger, metrics *metrics.Metrics) *Processor {
	return &Processor{
		store:     st,
		completer: completer,
		templates: engine,
		notifier:  notifier,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// ProcessResponse claims and processes a single response by id. The response
// must be pending.
func (p *Processor) ProcessResponse(ctx context.Context, id string) (*Result, error) {
	resp, err := p.store.ClaimByID(ctx, id, p.config.PodID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim response %s: %w", id, err)
	}

	return p.process(ctx, *resp)
}

// ProcessBatch claims up to the configured batch size of pending responses,
// oldest first, and processes them one at a time.
func (p *Processor) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	start := time.Now()
	defer func() {
		p.metrics.BatchProcessDuration.Observe(time.Since(start).Seconds())
	}()

	claimed, err := p.store.ClaimPending(ctx, p.config.PodID, p.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending responses: %w", err)
	}
	p.metrics.BatchSize.Set(float64(len(claimed)))

	result := &BatchResult{
		Processed: []Result{},
		Failed:    []Failure{},
	}

	for _, resp := range claimed {
		res, err := p.process(ctx, resp)
		if err != nil {
			result.Failed = append(result.Failed, Failure{ResponseID: resp.ID, Error: err.Error()})
			continue
		}
		result.Processed = append(result.Processed, *res)
	}

	result.ProcessedCount = len(result.Processed)
	result.FailedCount = len(result.Failed)

	if pending, err := p.store.CountPending(ctx); err == nil {
		p.metrics.PendingResponsesCount.Set(float64(pending))
	}

	if len(claimed) > 0 {
		p.logger.WithFields(logrus.Fields{
			"claimed":   len(claimed),
			"processed": result.ProcessedCount,
			"failed":    result.FailedCount,
			"duration":  time.Since(start),
		}).Info("Processed response batch")
	}

	return result, nil
}

func (p *Processor) process(ctx context.Context, resp models.Response) (*Result, error) {
	start := time.Now()
	defer func() {
		p.metrics.ResponseProcessDuration.Observe(time.Since(start).Seconds())
	}()

	logger := p.logger.WithField("response_id", resp.ID)
	analysis := analyzer.Analyze(resp.Content)

	result := &Result{
		ResponseID: resp.ID,
		Action:     ActionMarkedProcessed,
		Status:     models.StatusProcessed,
	}

	switch {
	case analysis.NeedsEscalation:
		reason := analysis.EscalationReason
		result.Action = ActionEscalated
		result.Status = models.StatusEscalated
		result.EscalationReason = &reason

		notification, err := p.notifier.NotifyEscalation(ctx, resp, reason)
		if err != nil {
			logger.WithError(err).Error("Failed to send escalation notification")
		}
		if notification.Stubbed {
			result.Notification = "stub"
		}

	case analysis.IsQuestion || analysis.NeedsFollowup:
		reply, msg, err := p.GenerateAutoResponse(ctx, resp)
		if err != nil {
			return nil, p.fail(ctx, resp.ID, err)
		}
		result.Action = ActionAutoResponseSent
		result.AutoResponseGenerated = true
		result.AutoResponseID = msg.ID
		result.FallbackUsed = reply.Degraded
	}

	outcome := models.Outcome{
		Status:                result.Status,
		EscalationReason:      result.EscalationReason,
		AutoResponseGenerated: result.AutoResponseGenerated,
	}
	if err := p.store.CompleteResponse(ctx, resp.ID, p.config.PodID, outcome); err != nil {
		if errors.Is(err, store.ErrNotClaimable) {
			// the claim was reclaimed and the response belongs to another worker now
			logger.WithError(err).Warn("Lost claim before recording outcome")
			return nil, fmt.Errorf("failed to record outcome: %w", err)
		}
		return nil, p.fail(ctx, resp.ID, fmt.Errorf("failed to record outcome: %w", err))
	}

	p.metrics.ResponsesProcessed.WithLabelValues(string(result.Status)).Inc()

	logger.WithFields(logrus.Fields{
		"action":      result.Action,
		"status":      result.Status,
		"rule":        analysis.Rule,
		"is_question": analysis.IsQuestion,
	}).Info("Processed response")

	return result, nil
}

// fail makes a best-effort attempt to mark the response failed. Both errors
// are returned when that write fails too.
func (p *Processor) fail(ctx context.Context, id string, cause error) error {
	p.metrics.ResponsesProcessed.WithLabelValues(string(models.StatusFailed)).Inc()

	if err := p.store.MarkFailed(ctx, id, p.config.PodID); err != nil {
		p.logger.WithError(err).WithField("response_id", id).Error("Failed to mark response failed")
		return errors.Join(cause, fmt.Errorf("failed to mark response failed: %w", err))
	}

	p.logger.WithError(cause).WithField("response_id", id).Error("Response processing failed")
	return cause
}

// GenerateAutoResponse renders the reply prompt from the original message,
// asks the completion API, and stores the result as a message from the
// selected persona. Completion failures fall back to a fixed reply; store and
// template errors are returned.
func (p *Processor) GenerateAutoResponse(ctx context.Context, resp models.Response) (llm.Reply, *models.Message, error) {
	original, err := p.store.GetMessage(ctx, resp.MessageID)
	if err != nil {
		return llm.Reply{}, nil, fmt.Errorf("failed to load original message %s: %w", resp.MessageID, err)
	}

	session, err := p.store.GetSession(ctx, resp.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.WithField("session_id", resp.SessionID).Warn("Session not found, rendering without job details")
		session = &models.Session{ID: resp.SessionID}
	} else if err != nil {
		return llm.Reply{}, nil, fmt.Errorf("failed to load session %s: %w", resp.SessionID, err)
	}

	profile, err := p.store.GetProfile(ctx, resp.UserID)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.WithField("user_id", resp.UserID).Warn("Profile not found, rendering without intern name")
		profile = &models.Profile{ID: resp.UserID}
	} else if err != nil {
		return llm.Reply{}, nil, fmt.Errorf("failed to load profile %s: %w", resp.UserID, err)
	}

	prompt, err := p.templates.Render(*original, resp, *session, *profile)
	if err != nil {
		return llm.Reply{}, nil, err
	}

	start := time.Now()
	reply := llm.ReplyWithFallback(ctx, p.completer, prompt.Text, p.logger)
	p.metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if reply.Degraded {
		p.metrics.LLMFallbacks.Inc()
	}

	msg := &models.Message{
		SessionID:        resp.SessionID,
		UserID:           resp.UserID,
		SenderType:       prompt.Persona.SenderType,
		SenderName:       prompt.Persona.Name,
		SenderRole:       prompt.Persona.Role,
		SenderDepartment: prompt.Persona.Department,
		Content:          reply.Text,
		InReplyTo:        resp.ID,
		IsAutoResponse:   true,
	}
	if err := p.store.InsertMessage(ctx, msg); err != nil {
		return reply, nil, fmt.Errorf("failed to store auto-response: %w", err)
	}

	return reply, msg, nil
}

// ReclaimStale returns claims older than the configured TTL to pending.
func (p *Processor) ReclaimStale(ctx context.Context) (int, error) {
	reclaimed, err := p.store.ReclaimStale(ctx, time.Now().Add(-p.config.ClaimTTL()))
	if err != nil {
		return 0, err
	}
	p.metrics.ReclaimedResponses.Add(float64(reclaimed))
	return reclaimed, nil
}
