package service

import (
	"context"
	"time"

	"github.com/Amaz3n/inkwell/config"
	"github.com/Amaz3n/inkwell/pkg/logger"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Domain event types published by the workflow.
const (
	EventRecipientSigned = "com.inkwell.envelope.recipient_signed"
	EventExecuted        = "com.inkwell.envelope.executed"
)

const eventSource = "inkwell/envelopes"

// Events publishes workflow domain events as CloudEvents to an HTTP sink.
// Without a configured sink the events are only logged. Publishing is
// best-effort and never changes the outcome of a submission.
type Events struct {
	client cloudevents.Client
	sink   string
}

func NewEvents(cfg *config.EventsConfig) (*Events, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, err
	}
	return &Events{client: client, sink: cfg.SinkURL}, nil
}

// Emit publishes one event. Failures are logged, not returned; the signing
// workflow must not fail because an observer is down.
func (e *Events) Emit(ctx context.Context, eventType, envelopeID string, data map[string]any) {
	if e == nil {
		return
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.New().String())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSubject(envelopeID)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		logger.Warn(ctx, "failed to encode domain event", "type", eventType, "error", err)
		return
	}

	if e.sink == "" {
		logger.Info(ctx, "domain event", "type", eventType, "envelope_id", envelopeID)
		return
	}

	sendCtx := cloudevents.ContextWithTarget(ctx, e.sink)
	if result := e.client.Send(sendCtx, event); cloudevents.IsUndelivered(result) {
		logger.Warn(ctx, "domain event undelivered",
			"type", eventType,
			"envelope_id", envelopeID,
			"sink", e.sink,
			"error", result,
		)
	}
}
