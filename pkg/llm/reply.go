package llm

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Reply is the outcome of asking for an auto-response. Degraded is set when
// the completion failed and Text holds FallbackText instead.
type Reply struct {
	Text     string
	Degraded bool
	Reason   string
}

// ReplyWithFallback asks completer for a reply and substitutes FallbackText on
// any failure. It never returns an error.
func ReplyWithFallback(ctx context.Context, completer Completer, prompt string, logger *logrus.Logger) Reply {
	text, err := completer.Complete(ctx, prompt)
	if err != nil {
		logger.WithError(err).Warn("Chat completion failed, using fallback response")
		return Reply{Text: FallbackText, Degraded: true, Reason: err.Error()}
	}
	return Reply{Text: text}
}
