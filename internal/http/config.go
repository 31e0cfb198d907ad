package http

import (
	"github.com/mrlokans/mapimport/internal/audit"
	"github.com/mrlokans/mapimport/internal/database"
	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/session"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Host     *host.Service
	Plugins  PluginRegistry
	Database *database.Database
	Audit    *audit.Service

	// Sessions keep the import draft; nil disables drafts
	SessionManager *session.Manager

	// CSRF protection is enabled when a secret is set
	CSRFSecret    []byte
	SecureCookies bool

	// Upload limit per file
	MaxUploadBytes int64

	// Task queue client (optional)
	TaskClient         TaskQueue
	AuditRetentionDays int

	// Cron jobs keyed by URL name (optional)
	Schedules map[string]ScheduledJob

	// Application info
	Version string
}
