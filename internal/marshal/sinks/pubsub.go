package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/shotprogress/internal/progress"
)

// Run lifecycle event types published by PubSubSink.
const (
	EventRunStarted  = "run_started"
	EventRunFinished = "run_finished"
	EventRunFailed   = "run_failed"
)

// RunEvent is the JSON payload published for run lifecycle changes.
type RunEvent struct {
	Type     string            `json:"type"`
	Snapshot progress.Snapshot `json:"snapshot"`
}

type topic interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
	Stop()
}

// PubSubSink publishes run lifecycle events to a Pub/Sub topic. Periodic
// progress updates within a run are not published.
type PubSubSink struct {
	topic   topic
	lastRun string
	inRun   bool
}

// NewPubSubSink wraps an existing topic handle.
func NewPubSubSink(t *pubsub.Topic) *PubSubSink {
	return &PubSubSink{topic: t}
}

// Render publishes an event when snap starts, finishes or fails a run and
// waits for the server acknowledgement.
func (s *PubSubSink) Render(ctx context.Context, snap progress.Snapshot) error {
	eventType, ok := s.classify(snap)
	if !ok {
		return nil
	}
	data, err := json.Marshal(RunEvent{Type: eventType, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"type":   eventType,
			"run_id": snap.RunID,
		},
	}
	if _, err := s.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	return nil
}

func (s *PubSubSink) classify(snap progress.Snapshot) (string, bool) {
	switch snap.Phase {
	case progress.PhaseProgress:
		if s.inRun && snap.RunID == s.lastRun {
			return "", false
		}
		s.lastRun = snap.RunID
		s.inRun = true
		return EventRunStarted, true
	case progress.PhaseCleared:
		if !s.inRun {
			return "", false
		}
		s.lastRun, s.inRun = "", false
		return EventRunFinished, true
	case progress.PhaseError:
		s.lastRun, s.inRun = "", false
		return EventRunFailed, true
	default:
		return "", false
	}
}

// Close flushes pending messages and stops the topic's background publishers.
func (s *PubSubSink) Close(context.Context) error {
	s.topic.Stop()
	return nil
}
