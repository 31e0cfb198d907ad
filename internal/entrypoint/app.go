package entrypoint

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/mapimport/internal/audit"
	"github.com/mrlokans/mapimport/internal/config"
	"github.com/mrlokans/mapimport/internal/database"
	auditrepo "github.com/mrlokans/mapimport/internal/database/audit"
	"github.com/mrlokans/mapimport/internal/database/collections"
	"github.com/mrlokans/mapimport/internal/database/projects"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/host"
	http_controllers "github.com/mrlokans/mapimport/internal/http"
	"github.com/mrlokans/mapimport/internal/importer"
	"github.com/mrlokans/mapimport/internal/plugins"
	"github.com/mrlokans/mapimport/internal/scheduler"
	"github.com/mrlokans/mapimport/internal/session"
	"github.com/mrlokans/mapimport/internal/tasks"
)

// App holds the wired service and its background workers.
type App struct {
	Router   *gin.Engine
	Host     *host.Service
	Plugins  *plugins.Registry
	Events   *audit.Service
	Tasks    *tasks.Client
	Sessions *session.Manager

	cfg        *config.Config
	db         *database.Database
	schedules  map[string]*scheduler.Job
	jobs       []*scheduler.Job
	cancelWork context.CancelFunc
}

// NewApp opens the database and wires every component. Nothing runs in the
// background until Start.
func NewApp(cfg *config.Config, version string) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{cfg: cfg, db: db}

	app.Events = audit.NewService(auditrepo.NewRepository(db.DB))
	archive := audit.NewAuditor(cfg.Audit.Dir)
	app.Host = host.NewService(host.Options{
		Collections: collections.NewRepository(db.DB),
		Projects:    projects.NewRepository(db.DB),
		Fetcher: fetch.NewClient(fetch.Config{
			Timeout:  cfg.Remote.FetchTimeout,
			MaxBytes: cfg.Remote.MaxBytes,
			ProxyURL: cfg.Remote.ProxyURL,
		}),
		Events:  app.Events,
		Archive: archive,
		Settings: importer.Settings{
			ProxyEnabled:           cfg.Remote.ProxyEnabled,
			DefaultRefreshInterval: cfg.Remote.DefaultRefresh,
		},
	})

	if cfg.Tasks.Enabled {
		app.Tasks, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to initialize task queue: %w", err)
		}
		app.Tasks.Register(
			tasks.NewIngestPayloadQueue(app.Host),
			tasks.NewRefreshRemoteQueue(app.Host),
			tasks.NewCleanupAuditEventsQueue(app.Events, archive),
		)
		app.Host.SetDispatcher(tasks.NewDispatcher(app.Tasks))
	} else {
		log.Printf("Task queue disabled, imports run inline")
	}

	app.schedules = make(map[string]*scheduler.Job)
	if cfg.Refresh.Enabled {
		app.schedules["remote_refresh"] = scheduler.NewRemoteRefreshScheduler(cfg.Refresh.Schedule, app.Host)
	}
	if app.Tasks != nil && cfg.Audit.CleanupSchedule != "" {
		app.schedules["audit_cleanup"] = scheduler.NewAuditCleanupScheduler(
			cfg.Audit.CleanupSchedule, cfg.Audit.RetentionDays, tasks.NewDispatcher(app.Tasks))
	}

	app.Plugins = plugins.NewRegistry(plugins.Builtin(), plugins.HostContext{
		Destinations: importer.NewDestinations(app.Host),
	}, plugins.ConfigsFrom(cfg.Plugins.Settings))

	sqlDB, err := db.DB.DB()
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to get SQL DB for sessions: %w", err)
	}
	app.Sessions, err = session.NewManager(sqlDB, cfg.Session.Lifetime, cfg.Session.SecureCookies)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize session manager: %w", err)
	}

	csrfSecret, generated, err := session.CSRFSecret(cfg.Session.CSRFSecret)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to generate CSRF secret: %w", err)
	}
	if generated {
		log.Printf("Generated CSRF secret (set CSRF_SECRET to persist)")
	}

	routerCfg := http_controllers.RouterConfig{
		Host:               app.Host,
		Plugins:            app.Plugins,
		Database:           db,
		Audit:              app.Events,
		SessionManager:     app.Sessions,
		CSRFSecret:         csrfSecret,
		SecureCookies:      cfg.Session.SecureCookies,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		Version:            version,
	}
	if app.Tasks != nil {
		routerCfg.TaskClient = app.Tasks
	}
	if len(app.schedules) > 0 {
		routerCfg.Schedules = make(map[string]http_controllers.ScheduledJob, len(app.schedules))
		for key, job := range app.schedules {
			routerCfg.Schedules[key] = job
		}
	}
	app.Router = http_controllers.NewRouter(routerCfg)

	return app, nil
}

// Start loads the configured plugins and starts the task workers and the
// scheduled jobs.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancelWork = context.WithCancel(ctx)

	a.Plugins.Load(ctx, a.cfg.Plugins.Keys)
	if a.cfg.WatchPlugins(func(p config.Plugins) {
		log.Printf("[PLUGINS] Reloading %v", p.Keys)
		a.Plugins.SetConfigs(plugins.ConfigsFrom(p.Settings))
		a.Plugins.Load(ctx, p.Keys)
	}) {
		log.Printf("[PLUGINS] Watching %s for changes", a.cfg.ConfigFile())
	}

	if a.Tasks != nil {
		a.Tasks.Start(ctx)
	}

	for _, job := range a.schedules {
		if err := job.Start(ctx); err != nil {
			log.Printf("Failed to start %s scheduler: %v", job.Name(), err)
			continue
		}
		a.jobs = append(a.jobs, job)
	}
}

// Stop halts the scheduled jobs and waits for the task workers to finish.
func (a *App) Stop(ctx context.Context) {
	for _, job := range a.jobs {
		job.Stop()
	}
	if a.Tasks != nil {
		a.Tasks.Stop(ctx)
	}
	if a.cancelWork != nil {
		a.cancelWork()
	}
}

// Close releases the databases. It waits for pending audit writes.
func (a *App) Close() {
	if a.Events != nil {
		a.Events.Wait()
	}
	if a.Tasks != nil {
		if err := a.Tasks.Close(); err != nil {
			log.Printf("Error closing task client: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}
