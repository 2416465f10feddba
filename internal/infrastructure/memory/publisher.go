package memory

import (
	"context"

	"github.com/baechuer/biometric-auth/internal/audit"
	"github.com/baechuer/biometric-auth/internal/logger"
)

// NoopPublisher stands in for the broker in dev.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher { return &NoopPublisher{} }

func (p *NoopPublisher) PublishAttempt(ctx context.Context, evt audit.AttemptEvent) error {
	logger.Logger.Debug().
		Str("component", "noop-pub").
		Str("routing_key", audit.RoutingKeyAttempt).
		Str("attempt_id", evt.ID).
		Str("outcome", evt.Outcome).
		Msg("event dropped")
	return nil
}
