package service

import (
	"context"
	"encoding/json"

	"github.com/linkmint/linkmint/internal/app/model"
	"github.com/nats-io/nats.go"
)

// AccessPublisher pushes access events onto NATS JetStream so the recording
// transaction happens off the redirect path.
type AccessPublisher struct {
	js nats.JetStreamContext
}

// NewAccessPublisher creates a JetStream-backed AccessSink.
func NewAccessPublisher(js nats.JetStreamContext) *AccessPublisher {
	return &AccessPublisher{js: js}
}

// Submit publishes the event to the hits stream.
func (p *AccessPublisher) Submit(_ context.Context, ev model.AccessEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.AccessStreamSubject, data)
	return err
}
