package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"socialhub/internal/middleware"
	"socialhub/internal/observability"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// msgPublisher is the subset of *nats.Conn used for publishing.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NatsPublisher publishes JSON events with the trace context in the
// message headers.
type NatsPublisher struct {
	conn msgPublisher
}

func NewNatsPublisher(conn msgPublisher) *NatsPublisher {
	return &NatsPublisher{conn: conn}
}

// Connect dials url with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("socialhub-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				middleware.Logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			middleware.Logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
}

func (p *NatsPublisher) PostCreated(ctx context.Context, evt PostCreated) error {
	return p.publish(ctx, SubjectPostCreated, evt)
}

func (p *NatsPublisher) PostDeleted(ctx context.Context, evt PostDeleted) error {
	return p.publish(ctx, SubjectPostDeleted, evt)
}

func (p *NatsPublisher) UserFollowed(ctx context.Context, evt FollowChanged) error {
	return p.publish(ctx, SubjectUserFollowed, evt)
}

func (p *NatsPublisher) UserUnfollowed(ctx context.Context, evt FollowChanged) error {
	return p.publish(ctx, SubjectUserUnfollowed, evt)
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, evt any) error {
	data, err := json.Marshal(evt)
	if err != nil {
		observability.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	if err := p.conn.PublishMsg(msg); err != nil {
		observability.EventsPublished.WithLabelValues(subject, "error").Inc()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	observability.EventsPublished.WithLabelValues(subject, "ok").Inc()
	middleware.Logger.DebugContext(ctx, "Published domain event", "subject", subject)
	return nil
}
