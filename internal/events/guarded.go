package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/mbd888/verdict/internal/circuitbreaker"
)

// ErrSuspended is returned while publishing to a topic is suspended after
// repeated failures.
var ErrSuspended = errors.New("events: publishing suspended")

// GuardedPublisher stops calling a failing publisher for a while instead of
// paying its timeout on every message. The breaker is keyed by topic.
type GuardedPublisher struct {
	next    Publisher
	breaker *circuitbreaker.Breaker
}

// NewGuardedPublisher wraps next with breaker.
func NewGuardedPublisher(next Publisher, breaker *circuitbreaker.Breaker) *GuardedPublisher {
	return &GuardedPublisher{next: next, breaker: breaker}
}

// Publish forwards to the wrapped publisher unless the topic is suspended.
func (p *GuardedPublisher) Publish(ctx context.Context, topic string, messages ...Message) error {
	err := p.breaker.Do(topic, func() error {
		return p.next.Publish(ctx, topic, messages...)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return fmt.Errorf("%w: %s", ErrSuspended, topic)
	}
	return err
}

// Close closes the wrapped publisher.
func (p *GuardedPublisher) Close() error {
	return p.next.Close()
}
