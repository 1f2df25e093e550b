package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/catalog-api/internal/metrics"
)

// jetStream is the subset of nats.JetStreamContext used for publishing.
type jetStream interface {
	PublishMsg(msg *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSPublisher publishes events on JetStream subjects "<prefix>.<event type>".
type NATSPublisher struct {
	nc      *nats.Conn
	js      jetStream
	prefix  string
	service string
	logger  *zap.Logger
}

// NewNATS creates a JetStream publisher and makes sure stream captures "<prefix>.>".
func NewNATS(nc *nats.Conn, stream, prefix, service string, logger *zap.Logger) (*NATSPublisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	if err := ensureStream(js, stream, prefix+".>"); err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc, js: js, prefix: prefix, service: service, logger: logger}, nil
}

func ensureStream(js nats.JetStreamManager, name, subject string) error {
	_, err := js.StreamInfo(name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", name, err)
	}
	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     name,
		Subjects: []string{subject},
		Storage:  nats.FileStorage,
	}); err != nil {
		return fmt.Errorf("add stream %s: %w", name, err)
	}
	return nil
}

// Subject returns the subject an event of type t is published on.
func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

// Publish serializes e and publishes it to JetStream.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	subject := p.Subject(e.Type)

	data, err := json.Marshal(e)
	if err != nil {
		metrics.IncEventPublished(subject, "error")
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":   []string{string(e.Type)},
			"event_id":     []string{e.ID.String()},
			"trace_id":     []string{e.TraceID},
			"service":      []string{p.service},
			"content_type": []string{"application/json"},
		},
	}
	// JetStream de-duplicates on this header within the stream window.
	msg.Header.Set(nats.MsgIdHdr, e.ID.String())

	start := time.Now()
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		p.logger.Error("events.nats.publish_failed",
			zap.String("subject", subject),
			zap.Int64("product_id", e.ProductID),
			zap.Error(err))
		metrics.IncEventPublished(subject, "error")
		return err
	}

	p.logger.Debug("events.nats.published",
		zap.String("subject", subject),
		zap.Int64("product_id", e.ProductID),
		zap.Duration("took", time.Since(start)))
	metrics.IncEventPublished(subject, "ok")
	return nil
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() error {
	if p.nc != nil && p.nc.IsConnected() {
		return p.nc.Drain()
	}
	return nil
}
