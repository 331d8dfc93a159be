package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// Publisher emits domain events (order.created, payment.verified, ...) to a
// Pub/Sub topic. Publishing is best effort: a broker failure is logged and
// swallowed so it can never fail the order or payment flow that raised the
// event.
type Publisher struct {
	topic   *pubsub.Topic
	logger  *zap.Logger
	marshal func(any) ([]byte, error)
	now     func() time.Time
}

// NewPublisher constructs a Pub/Sub backed domain event publisher.
func NewPublisher(topic *pubsub.Topic, logger *zap.Logger) (*Publisher, error) {
	if topic == nil {
		return nil, errors.New("event publisher: topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		topic:   topic,
		logger:  logger,
		marshal: json.Marshal,
		now:     time.Now,
	}, nil
}

// Publish enqueues one event message on the configured topic.
func (p *Publisher) Publish(ctx context.Context, event string, payload map[string]any) {
	if p == nil || p.topic == nil {
		return
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}

	data, err := p.marshal(payload)
	if err != nil {
		p.logger.Error("event payload marshal failed",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	attrs := map[string]string{
		"event":       event,
		"occurred_at": p.now().UTC().Format(time.RFC3339),
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		p.logger.Error("event publish failed",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}
