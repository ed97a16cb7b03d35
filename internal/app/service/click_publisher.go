package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/SnapLink/internal/app/model"
)

// ClickPublisher publishes recorded clicks to NATS JetStream. It is a
// ClickNotifier: the LinkStore stays the source of truth and the stream only
// fans clicks out to other consumers.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Notify publishes a notice for a click that was already stored.
func (p *ClickPublisher) Notify(code string, event model.ClickEvent) error {
	notice := model.ClickNotice{
		ID:        uuid.New().String(),
		LinkCode:  code,
		Source:    event.Source,
		Location:  event.Location,
		Timestamp: event.Timestamp,
	}

	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	if _, err := p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(notice.ID)); err != nil {
		return fmt.Errorf("publish click: %w", err)
	}
	return nil
}

// EnsureClickStream creates the click stream when it does not exist yet.
func EnsureClickStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.ClickStreamName,
		Subjects: []string{model.ClickStreamSubject},
		MaxBytes: model.ClickStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}
