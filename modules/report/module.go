// Package report serves team reports aggregated from the task store,
// optionally cached in Redis.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/task-tracker/events"
	"github.com/example/task-tracker/modules/storage"
	"github.com/example/task-tracker/modules/team"
	"github.com/example/task-tracker/pkg/apperr"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// ServiceTeamReport is the request-reply service name.
const ServiceTeamReport = "team-report"

// CacheConfig enables the Redis report cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string
	Prefix    string
	TTL       time.Duration
}

// ReportModule provides the team report service.
type ReportModule struct {
	cfg      CacheConfig
	storage  *storage.StorageModule
	teamPort team.TeamPort
	cache    *RedisCache
	service  Service
	logger   types.Logger
}

var (
	_ mono.Module                = (*ReportModule)(nil)
	_ mono.ServiceProviderModule = (*ReportModule)(nil)
	_ mono.DependentModule       = (*ReportModule)(nil)
	_ mono.UsePluginModule       = (*ReportModule)(nil)
	_ mono.EventConsumerModule   = (*ReportModule)(nil)
	_ mono.HealthCheckableModule = (*ReportModule)(nil)
)

// NewModule creates a report module.
func NewModule(cfg CacheConfig, logger types.Logger) *ReportModule {
	if cfg.Prefix == "" {
		cfg.Prefix = "report:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	return &ReportModule{cfg: cfg, logger: logger}
}

// NewModuleWithService creates a report module around a ready service.
func NewModuleWithService(service Service, logger types.Logger) *ReportModule {
	return &ReportModule{service: service, logger: logger}
}

func (m *ReportModule) Name() string {
	return "report"
}

func (m *ReportModule) Dependencies() []string {
	return []string{"team"}
}

func (m *ReportModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "team" {
		m.teamPort = team.NewTeamAdapter(container)
	}
}

// SetPlugin receives the storage plugin from the framework.
func (m *ReportModule) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "storage" {
		return
	}
	store, ok := plugin.(*storage.StorageModule)
	if !ok {
		m.logger.Error("Unexpected plugin type", "alias", alias, "expected", "*storage.StorageModule")
		return
	}
	m.storage = store
}

func (m *ReportModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceTeamReport, json.Unmarshal, json.Marshal, m.teamReport,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceTeamReport, err)
	}

	m.logger.Info("Registered services", "module", "report", "services", ServiceTeamReport)
	return nil
}

// RegisterEventConsumers subscribes to task history so cached reports never
// outlive the mutation that changed their counts.
func (m *ReportModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskHistoryV1, m.handleTaskHistory, m); err != nil {
		return fmt.Errorf("failed to register TaskHistory consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "module", "report", "events", "TaskHistory")
	return nil
}

func (m *ReportModule) handleTaskHistory(ctx context.Context, event events.TaskHistoryEvent, _ *mono.Msg) error {
	if m.service == nil {
		return nil
	}
	m.service.Invalidate(ctx)
	m.logger.Debug("Report cache invalidated", "task_id", event.TaskID, "event_id", event.EventID)
	return nil
}

func (m *ReportModule) teamReport(ctx context.Context, req ReportRequest, _ *mono.Msg) (ReportResponse, error) {
	r, err := m.service.GetByTeam(ctx, &req)
	if err != nil {
		return ReportResponse{Failure: apperr.Wire(err)}, nil
	}
	return ReportResponse{Report: &r}, nil
}

// Start connects the optional cache and builds the service.
// An unreachable Redis disables caching instead of failing startup.
func (m *ReportModule) Start(ctx context.Context) error {
	if m.service != nil {
		m.logger.Info("Module started with injected service", "module", "report")
		return nil
	}
	if m.teamPort == nil {
		return fmt.Errorf("teamPort dependency not set")
	}
	if m.storage == nil || m.storage.Store() == nil {
		return fmt.Errorf("storage plugin not set - ensure 'storage' plugin is registered")
	}

	var cache Cache
	if m.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: m.cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			m.logger.Warn("Redis not reachable, report cache disabled", "addr", m.cfg.RedisAddr, "error", err)
			_ = client.Close()
		} else {
			m.cache = NewRedisCache(client, m.cfg.Prefix, m.cfg.TTL)
			cache = m.cache
		}
	}

	m.service = NewService(m.storage.Store(), m.teamPort, cache, m.logger)
	m.logger.Info("Module started", "module", "report", "cache", m.cache != nil)
	return nil
}

func (m *ReportModule) Stop(_ context.Context) error {
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			return fmt.Errorf("failed to close redis connection: %w", err)
		}
	}
	m.logger.Info("Module stopped", "module", "report")
	return nil
}

// Health reports service wiring and cache statistics.
func (m *ReportModule) Health(ctx context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "service not initialized",
		}
	}

	details := map[string]any{"cache": "disabled"}
	if m.cache != nil {
		details["cache"] = "redis"
		details["cache_stats"] = m.cache.Stats()
		if err := m.cache.Ping(ctx); err != nil {
			details["cache_error"] = err.Error()
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
