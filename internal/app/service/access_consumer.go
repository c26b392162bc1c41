package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/linkmint/linkmint/internal/app/repository"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// AccessConsumer drains access events from JetStream and hands each one to
// the recorder, which commits the counter bump and stat row together.
type AccessConsumer struct {
	js       nats.JetStreamContext
	logger   *zap.Logger
	recorder repository.AccessRecorder
}

// NewAccessConsumer creates an access event consumer.
func NewAccessConsumer(js nats.JetStreamContext, logger *zap.Logger, recorder repository.AccessRecorder) *AccessConsumer {
	return &AccessConsumer{js: js, logger: logger, recorder: recorder}
}

// Start ensures the stream and durable consumer exist and begins consuming.
func (c *AccessConsumer) Start() error {
	_, err := c.js.StreamInfo(model.AccessStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.AccessStreamName,
			Subjects: []string{model.AccessStreamSubject},
			MaxBytes: model.AccessStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.AccessStreamName, model.AccessConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.AccessStreamName, &nats.ConsumerConfig{
			Durable:   model.AccessConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.AccessStreamSubject, model.AccessConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *AccessConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch access events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var ev model.AccessEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				c.logger.Error("failed to unmarshal access event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.recorder.Record(ctx, ev); err != nil {
				if errors.Is(err, repository.ErrLinkNotFound) {
					// Link deleted between redirect and recording: the hit
					// is unrecordable, drop it.
					msg.Ack()
					continue
				}
				c.logger.Error("failed to record access event",
					zap.String("id", ev.ID),
					zap.String("code", ev.ShortCode),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("access event recorded",
				zap.String("id", ev.ID),
				zap.String("code", ev.ShortCode),
				zap.Time("accessed_at", ev.AccessedAt),
			)

			msg.Ack()
		}
	}
}
