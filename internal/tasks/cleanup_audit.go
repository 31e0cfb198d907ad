package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const defaultAuditRetentionDays = 30

// AuditEventCleaner deletes audit events past their retention.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// ArchivePruner deletes archived rejected payloads past their retention.
type ArchivePruner interface {
	Prune(retention time.Duration) (int, error)
}

// CleanupAuditEventsTask prunes the import audit trail.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func (t CleanupAuditEventsTask) retention() time.Duration {
	days := t.RetentionDays
	if days <= 0 {
		days = defaultAuditRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CleanupAuditEventsProcessor prunes the audit events and, when archive is
// not nil, the archived payloads with the same retention.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner, archive ArchivePruner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		deleted, err := cleaner.DeleteOldEvents(task.retention())
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}

		if deleted > 0 {
			log.Printf("[TASK] Removed %d audit events older than %s", deleted, task.retention())
		}

		if archive == nil {
			return nil
		}
		pruned, err := archive.Prune(task.retention())
		if err != nil {
			return fmt.Errorf("prune archived payloads: %w", err)
		}
		if pruned > 0 {
			log.Printf("[TASK] Removed %d archived payloads older than %s", pruned, task.retention())
		}
		return nil
	}
}

func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner, archive ArchivePruner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, archive))
}
