package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"
)

// RefreshRequester queues refreshes of remote collections whose refresh
// interval elapsed.
type RefreshRequester interface {
	RequestDueRefreshes(ctx context.Context) (int, error)
}

// AuditCleanupRequester queues a pruning of old audit events.
type AuditCleanupRequester interface {
	RequestAuditCleanup(ctx context.Context, retentionDays int) error
}

// NewRemoteRefreshScheduler checks remote collections on schedule and
// requests a refresh for every collection that is due.
func NewRemoteRefreshScheduler(schedule string, requester RefreshRequester) *Job {
	return newJob("Remote refresh", schedule, time.Minute, func(ctx context.Context) error {
		requested, err := requester.RequestDueRefreshes(ctx)
		if err != nil {
			return fmt.Errorf("list remote collections: %w", err)
		}
		if requested > 0 {
			log.Printf("[REFRESH] Requested %d remote refreshes", requested)
		}
		return nil
	})
}

// NewAuditCleanupScheduler queues the audit cleanup task on schedule.
func NewAuditCleanupScheduler(schedule string, retentionDays int, requester AuditCleanupRequester) *Job {
	return newJob("Audit cleanup", schedule, 30*time.Second, func(ctx context.Context) error {
		if err := requester.RequestAuditCleanup(ctx, retentionDays); err != nil {
			return fmt.Errorf("queue cleanup: %w", err)
		}
		return nil
	})
}
