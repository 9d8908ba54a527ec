// Package publish delivers applied operations to downstream consumers
// over NATS JetStream. Publishing happens off the hot path and is
// non-fatal: consumers that need a complete feed read the operation
// log instead.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/GiG2Hire/gig-contract/internal/escrow"
	"github.com/GiG2Hire/gig-contract/internal/observability"
)

const streamName = "GIG_ESCROW_EVENTS"

// Publisher publishes applied operations to gig.escrow.events.{event_type}.
type Publisher struct {
	js      jetstream.JetStream
	input   <-chan escrow.Output
	metrics *observability.Metrics
	log     zerolog.Logger
}

// outboundEvent is the wire shape consumers see.
type outboundEvent struct {
	Sequence   int64       `json:"sequence"`
	EventType  string      `json:"event_type"`
	OpRef      string      `json:"op_ref"`
	Identifier *string     `json:"identifier,omitempty"`
	Payload    interface{} `json:"payload"`
	StateHash  []byte      `json:"state_hash"`
	PrevHash   []byte      `json:"prev_hash"`
	Timestamp  time.Time   `json:"timestamp"`
}

func NewPublisher(js jetstream.JetStream, input <-chan escrow.Output, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		js:      js,
		input:   input,
		metrics: metrics,
		log:     observability.NewLogger("publish"),
	}
}

func (p *Publisher) Run(ctx context.Context) error {
	p.log.Info().Msg("outbound publisher started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("outbound publisher stopped")
			return ctx.Err()

		case out, ok := <-p.input:
			if !ok {
				return nil
			}
			if err := p.publish(ctx, out); err != nil {
				p.metrics.PublishDrops.Inc()
				p.log.Warn().Err(err).
					Int64("sequence", out.Envelope.Sequence).
					Msg("outbound publish failed")
				continue
			}
			p.metrics.PublishedEvents.WithLabelValues(out.Envelope.EventType.String()).Inc()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, out escrow.Output) error {
	env := out.Envelope

	var identifier *string
	if env.Identifier != nil {
		hex := env.Identifier.Hex()
		identifier = &hex
	}

	data, err := json.Marshal(outboundEvent{
		Sequence:   env.Sequence,
		EventType:  env.EventType.String(),
		OpRef:      env.OpRef,
		Identifier: identifier,
		Payload:    env.Payload,
		StateHash:  env.StateHash[:],
		PrevHash:   env.PrevHash[:],
		Timestamp:  env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("gig.escrow.events.%s", env.EventType.String())
	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// EnsureStream creates or updates the outbound events stream.
func EnsureStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"gig.escrow.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string) (*nats.Conn, jetstream.JetStream, error) {
	log := observability.NewLogger("nats")
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
