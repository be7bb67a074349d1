package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/example/task-tracker/config"
	"github.com/example/task-tracker/modules/api"
	"github.com/example/task-tracker/modules/history"
	"github.com/example/task-tracker/modules/report"
	"github.com/example/task-tracker/modules/storage"
	"github.com/example/task-tracker/modules/task"
	"github.com/example/task-tracker/modules/team"
	"github.com/example/task-tracker/modules/user"
	"github.com/example/task-tracker/pkg/remote"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Task Tracker ===")

	cfg := config.MustLoad()
	log.Printf("Storage driver: %s", cfg.Storage.Driver)
	log.Printf("HTTP address: %s", cfg.HTTPAddress)

	// Anything other than ERROR logs at info.
	logLevel := mono.LogLevelInfo
	if strings.EqualFold(cfg.LogLevel, "ERROR") {
		logLevel = mono.LogLevelError
	}

	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// The framework calls SetPlugin("storage", ...) on the task and report modules.
	storagePlugin := storage.NewModule(storage.Config{
		Driver:      cfg.Storage.Driver,
		DatabaseURL: cfg.Storage.DatabaseURL,
		SQLitePath:  cfg.Storage.SQLitePath,
	}, logger)
	if err := app.RegisterPlugin(storagePlugin, "storage"); err != nil {
		log.Fatalf("Failed to register storage plugin: %v", err)
	}

	// Gateways first, then the core modules, then the HTTP boundary.
	modules := []mono.Module{
		user.NewModule(
			user.NewHTTPDirectory(remote.NewClient(cfg.Users.URL, cfg.Users.Timeout)),
			cfg.Users.URL,
			logger,
		),
		team.NewModule(
			team.NewHTTPRoster(remote.NewClient(cfg.Teams.URL, cfg.Teams.Timeout)),
			cfg.Teams.URL,
			logger,
		),
		history.NewModule(history.StreamConfig{
			URL:     cfg.History.NATSURL,
			Stream:  cfg.History.Stream,
			Subject: cfg.History.Subject,
		}, logger),
		task.NewModule(logger),
		report.NewModule(report.CacheConfig{
			RedisAddr: cfg.Cache.RedisAddr,
			TTL:       cfg.Cache.TTL,
		}, logger),
		api.NewModule(cfg.HTTPAddress, logger),
	}
	for _, m := range modules {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("Report cache: %s", enabledOrOff(cfg.Cache.RedisAddr))
	log.Printf("History stream: %s", enabledOrOff(cfg.History.NATSURL))
	log.Println("")
	log.Printf("REST API Endpoints (%s):", cfg.HTTPAddress)
	log.Println("  POST   /api/v1/task                  - Create a task")
	log.Println("  PATCH  /api/v1/task                  - Update a task")
	log.Println("  GET    /api/v1/task                  - List tasks (?status=&assignee=)")
	log.Println("  GET    /api/v1/task/:id              - Get a task by ID")
	log.Println("  GET    /api/v1/task/active           - Active tasks check (?assigneeId=)")
	log.Println("  POST   /api/v1/report                - Team report")
	log.Println("  GET    /health                       - Health check")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}

func enabledOrOff(addr string) string {
	if addr == "" {
		return "disabled"
	}
	return addr
}
