package processor

import (
	"context"

	"github.com/sirupsen/logrus"

	"careerprep/pkg/models"
)

// Notification reports what happened to an escalation alert
type Notification struct {
	Delivered bool
	Stubbed   bool
}

// EscalationNotifier alerts a human that a response needs attention
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, resp models.Response, reason string) (Notification, error)
}

// LogNotifier only logs the escalation. No alert leaves the process.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyEscalation(ctx context.Context, resp models.Response, reason string) (Notification, error) {
	n.logger.WithFields(logrus.Fields{
		"response_id": resp.ID,
		"session_id":  resp.SessionID,
		"user_id":     resp.UserID,
		"reason":      reason,
	}).Warn("Response escalated; notification delivery is not implemented")

	// TODO: deliver escalations to the coordinator inbox once its API exists
	return Notification{Stubbed: true}, nil
}
