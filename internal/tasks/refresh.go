package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/mapimport/internal/host"
	"github.com/mrlokans/mapimport/internal/importer"
)

// RefreshRunner executes remote refresh jobs.
type RefreshRunner interface {
	RunRefresh(ctx context.Context, job host.RefreshJob) error
}

// RefreshRemoteTask fetches the remote data of a linked collection.
type RefreshRemoteTask struct {
	Job host.RefreshJob `json:"job"`
}

// Config returns the queue configuration for refresh tasks. A failed refresh
// is retried once; the scheduler requests the next one anyway.
func (t RefreshRemoteTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_remote",
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   6 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// RefreshRemoteProcessor creates a processor function for RefreshRemoteTask.
func RefreshRemoteProcessor(runner RefreshRunner) backlite.QueueProcessor[RefreshRemoteTask] {
	return func(ctx context.Context, task RefreshRemoteTask) error {
		if runner == nil {
			return fmt.Errorf("refresh runner not configured")
		}

		err := runner.RunRefresh(ctx, task.Job)
		if errors.Is(err, importer.ErrCollectionNotFound) {
			log.Printf("[TASK] Collection %s is gone, refresh dropped", task.Job.CollectionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("refresh %s: %w", task.Job.CollectionID, err)
		}
		return nil
	}
}

// NewRefreshRemoteQueue creates a backlite queue for refresh tasks.
func NewRefreshRemoteQueue(runner RefreshRunner) backlite.Queue {
	return backlite.NewQueue(RefreshRemoteProcessor(runner))
}
