// Package history consumes task history events and forwards them to an
// external NATS JetStream stream for downstream audit consumers.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// DefaultStreamName is the JetStream stream holding task history.
	DefaultStreamName = "TASK_HISTORY"
	// DefaultSubject is the subject history records are published on.
	DefaultSubject = "tasks.history"
)

// Forwarder delivers a history record to an external sink.
type Forwarder interface {
	Forward(ctx context.Context, event events.TaskHistoryEvent) error
}

// StreamConfig configures the JetStream forwarder.
type StreamConfig struct {
	URL     string
	Stream  string
	Subject string
	MaxAge  time.Duration
}

// JetStreamForwarder publishes history records to a JetStream stream.
// The event id is used as the message id so the stream drops duplicates.
type JetStreamForwarder struct {
	cfg    StreamConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
}

var _ Forwarder = (*JetStreamForwarder)(nil)

// NewJetStreamForwarder creates a forwarder for cfg. Call Connect before use.
func NewJetStreamForwarder(cfg StreamConfig) *JetStreamForwarder {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStreamName
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	return &JetStreamForwarder{cfg: cfg}
}

// Connect dials NATS and creates or updates the history stream.
func (f *JetStreamForwarder) Connect(ctx context.Context) error {
	nc, err := nats.Connect(f.cfg.URL,
		nats.Name("task-tracker-history"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        f.cfg.Stream,
		Description: "Task history audit records",
		Subjects:    []string{f.cfg.Subject},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      f.cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create stream: %w", err)
	}

	f.nc = nc
	f.js = js
	f.stream = stream
	return nil
}

// Forward publishes event and waits for the stream acknowledgement.
func (f *JetStreamForwarder) Forward(ctx context.Context, event events.TaskHistoryEvent) error {
	if f.js == nil {
		return fmt.Errorf("history stream not connected")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal history event: %w", err)
	}

	if _, err := f.js.Publish(ctx, f.cfg.Subject, data, jetstream.WithMsgID(event.EventID)); err != nil {
		return fmt.Errorf("failed to publish history event %s: %w", event.EventID, err)
	}
	return nil
}

// StreamInfo returns the current state of the history stream.
func (f *JetStreamForwarder) StreamInfo(ctx context.Context) (*jetstream.StreamInfo, error) {
	if f.stream == nil {
		return nil, fmt.Errorf("stream not initialized")
	}
	return f.stream.Info(ctx)
}

// IsConnected reports whether the NATS connection is up.
func (f *JetStreamForwarder) IsConnected() bool {
	return f.nc != nil && f.nc.IsConnected()
}

// Close drains and closes the NATS connection.
func (f *JetStreamForwarder) Close() error {
	if f.nc == nil {
		return nil
	}
	if err := f.nc.Drain(); err != nil {
		f.nc.Close()
		return fmt.Errorf("failed to drain NATS connection: %w", err)
	}
	return nil
}
