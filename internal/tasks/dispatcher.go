package tasks

import (
	"context"
	"fmt"

	"github.com/mrlokans/mapimport/internal/host"
)

// Dispatcher queues host jobs on the task client.
type Dispatcher struct {
	client *Client
}

func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func (d *Dispatcher) DispatchIngest(ctx context.Context, job host.IngestJob) error {
	if _, err := d.client.Add(IngestPayloadTask{Job: job}).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("queue ingestion: %w", err)
	}
	return nil
}

func (d *Dispatcher) DispatchRefresh(ctx context.Context, job host.RefreshJob) error {
	if _, err := d.client.Add(RefreshRemoteTask{Job: job}).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("queue refresh: %w", err)
	}
	return nil
}

// RequestAuditCleanup queues a pruning of audit events older than
// retentionDays.
func (d *Dispatcher) RequestAuditCleanup(ctx context.Context, retentionDays int) error {
	if _, err := d.client.Add(CleanupAuditEventsTask{RetentionDays: retentionDays}).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("queue audit cleanup: %w", err)
	}
	return nil
}
