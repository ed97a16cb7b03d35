package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/SnapLink/internal/app/model"
	infraPrometheus "github.com/sifan077/SnapLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	fetchBatch   = 10
	fetchMaxWait = 5 * time.Second
	fetchBackoff = time.Second
)

// ClickHandler processes one click notice read from the stream.
type ClickHandler func(ctx context.Context, notice model.ClickNotice) error

// ClickConsumer drains the click stream through a durable pull consumer.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	handle ClickHandler
}

// NewClickConsumer creates a consumer; a nil handler counts each notice per
// location and logs it.
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, handle ClickHandler) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ClickConsumer{js: js, logger: logger, handle: handle}
	if c.handle == nil {
		c.handle = c.recordNotice
	}
	return c
}

// Start ensures the stream and durable consumer exist and consumes until ctx
// is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureClickStream(c.js); err != nil {
		return err
	}

	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:   model.ClickConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchMaxWait)
		msgs, err := sub.Fetch(fetchBatch, nats.Context(fetchCtx))
		cancel()
		switch {
		case err == nil, errors.Is(err, nats.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		case errors.Is(err, nats.ErrConnectionClosed), errors.Is(err, nats.ErrBadSubscription):
			c.logger.Warn("click subscription closed", zap.Error(err))
			return
		default:
			c.logger.Error("failed to fetch messages", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(fetchBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			if err := c.process(ctx, msg.Data); err != nil {
				c.logger.Error("failed to process click notice", zap.Error(err))
				_ = msg.Nak()
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (c *ClickConsumer) process(ctx context.Context, data []byte) error {
	var notice model.ClickNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		return fmt.Errorf("unmarshal click notice: %w", err)
	}
	if err := c.handle(ctx, notice); err != nil {
		return fmt.Errorf("handle click %s: %w", notice.ID, err)
	}
	infraPrometheus.ClicksStreamed.Inc()
	return nil
}

func (c *ClickConsumer) recordNotice(_ context.Context, notice model.ClickNotice) error {
	location := notice.Location
	if location == "" {
		location = model.DefaultClickLocation
	}
	infraPrometheus.StreamedClicksByLocation.WithLabelValues(location).Inc()

	c.logger.Debug("click notice",
		zap.String("id", notice.ID),
		zap.String("link_code", notice.LinkCode),
		zap.String("source", notice.Source),
		zap.String("location", notice.Location),
		zap.Time("timestamp", notice.Timestamp),
	)
	return nil
}
