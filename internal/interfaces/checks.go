package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/mapimport/internal/audit"
	"github.com/mrlokans/mapimport/internal/database/collections"
	"github.com/mrlokans/mapimport/internal/database/projects"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/http"
	"github.com/mrlokans/mapimport/internal/importer"
	"github.com/mrlokans/mapimport/internal/plugins"
	"github.com/mrlokans/mapimport/internal/scheduler"
	"github.com/mrlokans/mapimport/internal/session"
	"github.com/mrlokans/mapimport/internal/tasks"
)

// =============================================================================
// Import Pipeline
// =============================================================================

// Host implementations
var _ importer.Host = (*host.Service)(nil)

// Plugin implementations
var _ plugins.Plugin = (*plugins.Overpass)(nil)
var _ plugins.Plugin = (*plugins.Datasets)(nil)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ host.CollectionStore = (*collections.Repository)(nil)
var _ host.ProjectStore = (*projects.Repository)(nil)

// Audit trail
var _ host.EventLog = (*audit.Service)(nil)
var _ host.Archiver = (*audit.Auditor)(nil)
var _ http.AuditReader = (*audit.Service)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ tasks.ArchivePruner = (*audit.Auditor)(nil)

// =============================================================================
// External Services
// =============================================================================

var _ host.Fetcher = (*fetch.Client)(nil)

// =============================================================================
// Background Jobs
// =============================================================================

// Dispatcher implementations
var _ host.Dispatcher = host.InlineDispatcher{}
var _ host.Dispatcher = (*tasks.Dispatcher)(nil)

// Task runners
var _ tasks.IngestRunner = (*host.Service)(nil)
var _ tasks.RefreshRunner = (*host.Service)(nil)

// Scheduled requests
var _ scheduler.RefreshRequester = (*host.Service)(nil)
var _ scheduler.AuditCleanupRequester = (*tasks.Dispatcher)(nil)

// =============================================================================
// HTTP Layer
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ http.QueueStatus = (*tasks.Client)(nil)
var _ http.DraftStore = (*session.Manager)(nil)
var _ http.PluginRegistry = (*plugins.Registry)(nil)
var _ http.PluginStatus = (*plugins.Registry)(nil)
var _ http.ScheduledJob = (*scheduler.Job)(nil)
