// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help code agents understand
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Import Pipeline
//
//   - Host: Everything the orchestrator needs from the map (internal/importer/host.go)
//   - Alerter: User-facing notifications (internal/importer/host.go)
//   - Surface: The import dialog fields (internal/importer/surface.go)
//   - Plugin / Module: Quick-import helpers (internal/plugins/plugin.go)
//
// ## Data Access Interfaces
//
//   - CollectionStore: Collections and datasets (internal/host/service.go)
//   - ProjectStore: Project settings (internal/host/service.go)
//   - EventLog / Archiver: Audit trail (internal/host/service.go)
//   - AuditReader: Audit queries (internal/http/audit.go)
//   - DraftStore: Import draft kept in the session (internal/http/import.go)
//
// ## Background Jobs
//
//   - Dispatcher: Runs ingestion and refresh jobs (internal/host/dispatch.go)
//   - IngestRunner / RefreshRunner / AuditEventCleaner: Task processors (internal/tasks/)
//   - RefreshRequester / AuditCleanupRequester: Scheduled jobs (internal/scheduler/jobs.go)
//   - ScheduledJob: Schedule status and manual runs (internal/http/schedules.go)
//
// # Adding a New Import Format
//
//  1. Add the format to internal/formats/formats.go and teach Detect its
//     extension, MIME type and content signature.
//
//  2. Teach host.Service.runIngest how to store it if it needs more than an
//     embedded copy.
//
// # Adding a New Plugin
//
//  1. Implement Plugin in internal/plugins/
//
//     type Gtfs struct {
//         feeds map[string]string
//     }
//
//     func NewGtfs(host HostContext, cfg Config) (Plugin, error)
//     func (g *Gtfs) Name() string
//     func (g *Gtfs) Open(ctx context.Context, surface importer.Surface, args Args) error
//
//  2. Register the module in plugins.Builtin and add its key to IMPORT_PLUGINS.
//
// # Adding a New Background Task
//
//  1. Define the task and its backlite queue in internal/tasks/
//
//  2. Register the queue in entrypoint.NewApp and, for periodic work, add a
//     scheduler.Job in internal/scheduler/jobs.go.
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
