package history

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/task-tracker/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// connectTimeout bounds stream setup at start; the client retries the dial until then.
const connectTimeout = 5 * time.Second

// HistoryModule receives TaskHistory events from the task module.
// Records are forwarded when a forwarder is configured and logged otherwise.
type HistoryModule struct {
	cfg       StreamConfig
	forwarder Forwarder
	jetstream *JetStreamForwarder
	logger    types.Logger

	received  atomic.Uint64
	forwarded atomic.Uint64
	failed    atomic.Uint64
}

var (
	_ mono.Module                = (*HistoryModule)(nil)
	_ mono.EventConsumerModule   = (*HistoryModule)(nil)
	_ mono.HealthCheckableModule = (*HistoryModule)(nil)
)

// NewModule creates a history module. Forwarding to JetStream is enabled when cfg.URL is set.
func NewModule(cfg StreamConfig, logger types.Logger) *HistoryModule {
	return &HistoryModule{cfg: cfg, logger: logger}
}

// NewModuleWithForwarder creates a history module that forwards through f.
func NewModuleWithForwarder(f Forwarder, logger types.Logger) *HistoryModule {
	return &HistoryModule{forwarder: f, logger: logger}
}

func (m *HistoryModule) Name() string {
	return "history"
}

func (m *HistoryModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskHistoryV1, m.handleTaskHistory, m); err != nil {
		return fmt.Errorf("failed to register TaskHistory consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "module", "history", "events", "TaskHistory")
	return nil
}

// handleTaskHistory never returns an error: history delivery must not affect the mutation.
func (m *HistoryModule) handleTaskHistory(ctx context.Context, event events.TaskHistoryEvent, _ *mono.Msg) error {
	m.received.Add(1)

	if m.forwarder == nil {
		m.logger.Info("Task history recorded",
			"event_id", event.EventID,
			"task_id", event.TaskID,
			"status", event.Data.Status,
			"created_by", event.CreatedBy)
		return nil
	}

	if err := m.forwarder.Forward(ctx, event); err != nil {
		m.failed.Add(1)
		m.logger.Warn("Failed to forward task history",
			"event_id", event.EventID,
			"task_id", event.TaskID,
			"error", err)
		return nil
	}

	m.forwarded.Add(1)
	return nil
}

// Start connects the JetStream forwarder when configured. An unreachable
// server disables forwarding rather than failing startup.
func (m *HistoryModule) Start(ctx context.Context) error {
	if m.forwarder == nil && m.cfg.URL != "" {
		js := NewJetStreamForwarder(m.cfg)
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := js.Connect(connectCtx)
		cancel()
		if err != nil {
			m.logger.Warn("History forwarding disabled", "url", m.cfg.URL, "error", err)
		} else {
			m.jetstream = js
			m.forwarder = js
		}
	}

	m.logger.Info("Module started", "module", "history", "forwarding", m.forwarder != nil)
	return nil
}

func (m *HistoryModule) Stop(_ context.Context) error {
	if m.jetstream != nil {
		if err := m.jetstream.Close(); err != nil {
			return err
		}
	}
	m.logger.Info("Module stopped", "module", "history")
	return nil
}

// Stats returns the received, forwarded and failed counters.
func (m *HistoryModule) Stats() (received, forwarded, failed uint64) {
	return m.received.Load(), m.forwarded.Load(), m.failed.Load()
}

// Health reports the delivery counters. Delivery failures do not make the module unhealthy.
func (m *HistoryModule) Health(_ context.Context) mono.HealthStatus {
	received, forwarded, failed := m.Stats()
	details := map[string]any{
		"received":   received,
		"forwarded":  forwarded,
		"failed":     failed,
		"forwarding": m.forwarder != nil,
	}
	if m.jetstream != nil {
		details["connected"] = m.jetstream.IsConnected()
		details["stream"] = m.jetstream.cfg.Stream
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
