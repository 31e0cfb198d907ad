package host

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mrlokans/mapimport/internal/entities"
	"github.com/mrlokans/mapimport/internal/fetch"
	"github.com/mrlokans/mapimport/internal/formats"
	"github.com/mrlokans/mapimport/internal/importer"
)

// ErrUndetectableFormat is returned when neither the request nor the payload
// tells which format the data is in.
var ErrUndetectableFormat = errors.New("cannot determine data format")

// ErrProjectInCollection is returned for project payloads sent to a single
// collection.
var ErrProjectInCollection = errors.New("project files replace the whole map and cannot be imported into a layer")

const rawDatasetName = "Pasted data"

func (s *Service) IngestFile(ctx context.Context, target *entities.Collection, file formats.File, format formats.Format) {
	s.dispatchIngest(ctx, IngestJob{
		CollectionID: target.ID,
		Origin:       entities.DatasetOriginFile,
		Name:         file.Name,
		ContentType:  file.ContentType,
		Format:       format,
		Data:         file.Data,
	})
}

func (s *Service) IngestRaw(ctx context.Context, target *entities.Collection, raw string, format formats.Format) {
	s.dispatchIngest(ctx, IngestJob{
		CollectionID: target.ID,
		Origin:       entities.DatasetOriginRaw,
		Name:         rawDatasetName,
		Format:       format,
		Data:         []byte(raw),
	})
}

// IngestURL marks the collection as loading until the download finished.
func (s *Service) IngestURL(ctx context.Context, target *entities.Collection, url string, format formats.Format) {
	if err := s.collections.SetLoaded(ctx, target.ID, false); err != nil {
		log.Printf("[IMPORT] Failed to mark %s as loading: %v", describe(target), err)
	} else {
		target.Loaded = false
	}
	s.dispatchIngest(ctx, IngestJob{
		CollectionID: target.ID,
		Origin:       entities.DatasetOriginURL,
		Name:         url,
		Format:       format,
		URL:          url,
	})
}

// FetchRemote requests a refresh of a remote-linked collection. A forced
// refresh ignores the age of the current snapshot.
func (s *Service) FetchRemote(ctx context.Context, target *entities.Collection, force bool) {
	if force {
		if err := s.collections.SetLoaded(ctx, target.ID, false); err != nil {
			log.Printf("[REFRESH] Failed to mark %s as loading: %v", describe(target), err)
		} else {
			target.Loaded = false
		}
	}
	if err := s.dispatcher.DispatchRefresh(ctx, RefreshJob{CollectionID: target.ID, Force: force}); err != nil {
		log.Printf("[REFRESH] Failed to queue refresh of %s: %v", describe(target), err)
		s.alerts.Alert(importer.LevelError, fmt.Sprintf("Could not load %s", target.Name))
	}
}

func (s *Service) dispatchIngest(ctx context.Context, job IngestJob) {
	if err := s.dispatcher.DispatchIngest(ctx, job); err != nil {
		log.Printf("[IMPORT] Failed to queue %s for %s: %v", job.Name, job.CollectionID, err)
		s.alerts.Alert(importer.LevelError, fmt.Sprintf("Could not import %s", job.Name))
		if job.Origin == entities.DatasetOriginURL {
			_ = s.collections.SetLoaded(ctx, job.CollectionID, true)
		}
	}
}

// RunIngest executes an ingestion job: download when needed, settle the
// format and store the payload as a dataset of the collection.
func (s *Service) RunIngest(ctx context.Context, job IngestJob) error {
	err := s.runIngest(ctx, job)
	action := "copy_" + string(job.Origin)
	if err != nil {
		log.Printf("[IMPORT] Import of %s into %s failed: %v", job.Name, job.CollectionID, err)
		s.alerts.Alert(importer.LevelError, fmt.Sprintf("Could not import %s: %v", job.Name, err))
		s.events.LogImport(action, job.CollectionID, "Import of "+job.Name+" failed", nil, err)
		return err
	}
	return nil
}

func (s *Service) runIngest(ctx context.Context, job IngestJob) error {
	target, err := s.GetCollection(ctx, job.CollectionID)
	if err != nil {
		return fmt.Errorf("load collection: %w", err)
	}

	data := job.Data
	if job.Origin == entities.DatasetOriginURL {
		defer func() {
			if err := s.collections.SetLoaded(ctx, target.ID, true); err != nil {
				log.Printf("[IMPORT] Failed to mark %s as loaded: %v", describe(target), err)
			}
		}()
		if data, err = s.fetcher.Get(ctx, job.URL, fetch.Options{}); err != nil {
			return err
		}
	}

	format := job.Format
	if !format.IsSet() {
		format = formats.Detect(formats.File{Name: job.Name, ContentType: job.ContentType, Data: data})
	}
	switch {
	case !format.IsSet():
		s.archiveRejected(string(job.Origin), job.Name, data, ErrUndetectableFormat)
		return ErrUndetectableFormat
	case format.IsProject():
		s.archiveRejected(string(job.Origin), job.Name, data, ErrProjectInCollection)
		return ErrProjectInCollection
	}

	dataset := &entities.Dataset{
		CollectionID: target.ID,
		Name:         job.Name,
		Format:       format.String(),
		Origin:       job.Origin,
		Data:         data,
		Size:         len(data),
	}
	if job.Origin != entities.DatasetOriginRaw {
		dataset.Source = job.Name
	}
	if err := s.collections.AddDataset(ctx, dataset); err != nil {
		return err
	}

	log.Printf("[IMPORT] Stored %s (%s, %d bytes) in %s", job.Name, format, len(data), describe(target))
	s.events.LogImport("copy_"+string(job.Origin), target.ID, fmt.Sprintf("Imported %s into %s", job.Name, target.Name),
		map[string]any{"format": format.String(), "bytes": len(data)}, nil)
	return nil
}

// RunRefresh fetches the remote data of a linked collection and stores the
// snapshot. Unforced refreshes of a fresh snapshot are skipped.
func (s *Service) RunRefresh(ctx context.Context, job RefreshJob) error {
	target, err := s.GetCollection(ctx, job.CollectionID)
	if err != nil {
		log.Printf("[REFRESH] Skipping %s: %v", job.CollectionID, err)
		return err
	}
	if !target.IsRemote() {
		log.Printf("[REFRESH] Skipping %s: not linked to a remote source", describe(target))
		return nil
	}
	now := s.now()
	if !job.Force && !target.NeedsRefresh(now) {
		return nil
	}

	opts := fetch.Options{Proxied: target.Remote.Proxied, TTL: target.Remote.RefreshInterval()}
	data, err := s.fetcher.Get(ctx, target.Remote.URL, opts)
	if err != nil {
		log.Printf("[REFRESH] Fetching %s for %s failed: %v", target.Remote.URL, describe(target), err)
		if setErr := s.collections.SetLoaded(ctx, target.ID, true); setErr != nil {
			log.Printf("[REFRESH] Failed to mark %s as loaded: %v", describe(target), setErr)
		}
		s.alerts.Alert(importer.LevelError, fmt.Sprintf("Could not load remote data of %s", target.Name))
		s.events.LogRefresh(target.ID, target.Remote.URL, 0, err)
		return err
	}

	if err := s.collections.StoreRemoteSnapshot(ctx, target.ID, data, now); err != nil {
		s.events.LogRefresh(target.ID, target.Remote.URL, len(data), err)
		return err
	}
	log.Printf("[REFRESH] Refreshed %s from %s (%d bytes)", describe(target), target.Remote.URL, len(data))
	s.events.LogRefresh(target.ID, target.Remote.URL, len(data), nil)
	return nil
}
