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

// IngestRunner executes ingestion jobs.
type IngestRunner interface {
	RunIngest(ctx context.Context, job host.IngestJob) error
}

// IngestPayloadTask copies a file, pasted text or downloaded URL into a
// collection.
type IngestPayloadTask struct {
	Job host.IngestJob `json:"job"`
}

// Config returns the queue configuration for ingestion tasks.
func (t IngestPayloadTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "ingest_payload",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// IngestPayloadProcessor creates a processor function for IngestPayloadTask.
// Failures that another attempt cannot fix are not retried.
func IngestPayloadProcessor(runner IngestRunner) backlite.QueueProcessor[IngestPayloadTask] {
	return func(ctx context.Context, task IngestPayloadTask) error {
		if runner == nil {
			return fmt.Errorf("ingest runner not configured")
		}

		err := runner.RunIngest(ctx, task.Job)
		if err != nil && permanent(err) {
			log.Printf("[TASK] Dropping ingestion of %s into %s: %v", task.Job.Name, task.Job.CollectionID, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("ingest %s into %s: %w", task.Job.Name, task.Job.CollectionID, err)
		}

		log.Printf("[TASK] Ingested %s into %s", task.Job.Name, task.Job.CollectionID)
		return nil
	}
}

// NewIngestPayloadQueue creates a backlite queue for ingestion tasks.
func NewIngestPayloadQueue(runner IngestRunner) backlite.Queue {
	return backlite.NewQueue(IngestPayloadProcessor(runner))
}

func permanent(err error) bool {
	return errors.Is(err, host.ErrUndetectableFormat) ||
		errors.Is(err, host.ErrProjectInCollection) ||
		errors.Is(err, importer.ErrCollectionNotFound)
}
