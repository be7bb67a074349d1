// Package storage owns the task store connection. It backs the task and
// report repositories with PostgreSQL (pgx) or SQLite (GORM).
package storage

import (
	"context"
	"fmt"

	"github.com/example/task-tracker/domain/report"
	"github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a task store usable by both the task and report modules.
type Store interface {
	task.Repository
	report.Repository
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures the store driver.
type Config struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
}

// StorageModule is a plugin that opens the store on start and closes it on stop.
// Plugins start before regular modules, so consumers can read Store() in their Start.
type StorageModule struct {
	cfg       Config
	store     Store
	container types.ServiceContainer
	logger    types.Logger
}

var (
	_ mono.PluginModule          = (*StorageModule)(nil)
	_ mono.HealthCheckableModule = (*StorageModule)(nil)
)

// NewModule creates a storage module for cfg.
func NewModule(cfg Config, logger types.Logger) *StorageModule {
	return &StorageModule{cfg: cfg, logger: logger}
}

// NewModuleWithStore creates a storage module around an already open store.
func NewModuleWithStore(store Store, logger types.Logger) *StorageModule {
	return &StorageModule{store: store, logger: logger}
}

func (m *StorageModule) Name() string {
	return "storage"
}

// SetContainer sets the service container for this plugin.
func (m *StorageModule) SetContainer(container types.ServiceContainer) {
	m.container = container
}

// Container returns the service container for this plugin.
func (m *StorageModule) Container() types.ServiceContainer {
	return m.container
}

// Store returns the open store, or nil before Start.
func (m *StorageModule) Store() Store {
	return m.store
}

// Start connects to the configured database and applies the schema.
func (m *StorageModule) Start(ctx context.Context) error {
	if m.store != nil {
		m.logger.Info("Module started with injected store", "module", "storage", "driver", m.store.Driver())
		return nil
	}

	switch m.cfg.Driver {
	case DriverPostgres:
		pg, err := OpenPostgres(ctx, m.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		m.store = pg
	case DriverSQLite:
		lite, err := OpenSQLite(m.cfg.SQLitePath)
		if err != nil {
			return err
		}
		m.store = lite
	default:
		return fmt.Errorf("unknown storage driver %q", m.cfg.Driver)
	}

	m.logger.Info("Module started", "module", "storage", "driver", m.store.Driver())
	return nil
}

// Stop closes the store.
func (m *StorageModule) Stop(_ context.Context) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to close %s store: %w", m.store.Driver(), err)
	}
	m.logger.Info("Module stopped", "module", "storage")
	return nil
}

// Health pings the store.
func (m *StorageModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}

	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": m.store.Driver(),
		},
	}
}
