package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/mrlokans/mapimport/internal/audit"
	"github.com/mrlokans/mapimport/internal/config"
	"github.com/mrlokans/mapimport/internal/database"
	auditrepo "github.com/mrlokans/mapimport/internal/database/audit"
	"github.com/mrlokans/mapimport/internal/database/collections"
	"github.com/mrlokans/mapimport/internal/database/projects"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/importer"
)

// environment is the storage and host service a command runs against. Jobs
// run inline: the command returns once every import finished.
type environment struct {
	db     *database.Database
	events *audit.Service
	host   *host.Service
	cfg    *config.Config
}

func openEnvironment(dbPath string, out io.Writer) (*environment, error) {
	cfg := config.NewConfig()

	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for database: %w", err)
	}

	db, err := database.NewDatabase(absDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	events := audit.NewService(auditrepo.NewRepository(db.DB))
	svc := host.NewService(host.Options{
		Collections: collections.NewRepository(db.DB),
		Projects:    projects.NewRepository(db.DB),
		Fetcher: fetch.NewClient(fetch.Config{
			Timeout:  cfg.Remote.FetchTimeout,
			MaxBytes: cfg.Remote.MaxBytes,
			ProxyURL: cfg.Remote.ProxyURL,
		}),
		Events:  events,
		Archive: audit.NewAuditor(cfg.Audit.Dir),
		Alerts:  printAlerts(out),
		Settings: importer.Settings{
			ProxyEnabled:           cfg.Remote.ProxyEnabled,
			DefaultRefreshInterval: cfg.Remote.DefaultRefresh,
		},
	})

	return &environment{db: db, events: events, host: svc, cfg: cfg}, nil
}

func (e *environment) Close() {
	e.events.Wait()
	e.db.Close()
}

func printAlerts(out io.Writer) importer.Alerter {
	return importer.AlerterFunc(func(level importer.Level, message string) {
		fmt.Fprintf(out, "  [%s] %s\n", level, message)
	})
}
