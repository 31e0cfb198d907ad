package host

import (
	"context"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/formats"
)

// IngestJob copies one payload into a collection.
type IngestJob struct {
	CollectionID string                 `json:"collection_id"`
	Origin       entities.DatasetOrigin `json:"origin"`
	Name         string                 `json:"name"`
	ContentType  string                 `json:"content_type,omitempty"`
	Format       formats.Format         `json:"format"`
	URL          string                 `json:"url,omitempty"`
	Data         []byte                 `json:"data,omitempty"`
}

// RefreshJob fetches the remote data of a linked collection.
type RefreshJob struct {
	CollectionID string `json:"collection_id"`
	Force        bool   `json:"force"`
}

// Dispatcher hands jobs to whatever runs them.
type Dispatcher interface {
	DispatchIngest(ctx context.Context, job IngestJob) error
	DispatchRefresh(ctx context.Context, job RefreshJob) error
}

// InlineDispatcher runs jobs synchronously on the calling goroutine. Job
// failures are already reported by the service, so they are not returned.
type InlineDispatcher struct {
	Service *Service
}

func (d InlineDispatcher) DispatchIngest(ctx context.Context, job IngestJob) error {
	_ = d.Service.RunIngest(ctx, job)
	return nil
}

func (d InlineDispatcher) DispatchRefresh(ctx context.Context, job RefreshJob) error {
	_ = d.Service.RunRefresh(ctx, job)
	return nil
}
