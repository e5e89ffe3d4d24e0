package outreach

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Erprabhat8423/beyond-academy/internal/utils"
)

// Sender wraps a Transport with bounded retries. Delivery either succeeds
// within the attempt budget or fails for good; the caller decides what a
// final failure means for the cycle.
type Sender struct {
	transport   Transport
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

func NewSender(transport Transport, maxAttempts int, backoff time.Duration, logger *zap.Logger) *Sender {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Sender{
		transport:   transport,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger,
	}
}

// MaxAttempts reports the configured attempt budget.
func (s *Sender) MaxAttempts() int { return s.maxAttempts }

// Send attempts delivery up to the configured number of times, backing off
// linearly between attempts. Context cancellation stops retrying early.
func (s *Sender) Send(ctx context.Context, e Email) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.transport.Send(ctx, e)
		if lastErr == nil {
			return nil
		}
		s.logger.Warn("send attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.maxAttempts),
			zap.String("message_id", e.MessageID),
			zap.Error(lastErr),
		)
		if attempt == s.maxAttempts {
			break
		}
		if err := utils.WaitFor(ctx, s.backoff*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", s.maxAttempts, lastErr)
}
